package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-api/internal/config"
	"github.com/iliyamo/videotube-api/internal/logging"
	"github.com/iliyamo/videotube-api/internal/middleware"
	"github.com/iliyamo/videotube-api/internal/model"
	"github.com/iliyamo/videotube-api/internal/service"
)

const (
	// RefreshTokenCookie carries the refresh token.
	RefreshTokenCookie = "refreshToken"

	requestTimeout = 5 * time.Second
	uploadTimeout  = 30 * time.Second
)

// AuthHandler bundles dependencies for auth and account endpoints.
type AuthHandler struct {
	Cfg  config.Config
	Auth *service.AuthService
	Log  logging.Logger
}

func NewAuthHandler(cfg config.Config, auth *service.AuthService, log logging.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: auth, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword" form:"oldPassword"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

type sessionResp struct {
	User         model.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// Register: multipart form with fullName, email, username, password, a
// required avatar file and an optional coverImage file.
func (h *AuthHandler) Register(c echo.Context) error {
	avatar, err := h.stage(c, "avatar")
	if err != nil {
		h.Log.Error(c.Request().Context(), "stage avatar", "err", err)
		return respond(c, http.StatusInternalServerError, nil, "could not read avatar file")
	}
	defer removeStaged(avatar)
	cover, err := h.stage(c, "coverImage")
	if err != nil {
		h.Log.Error(c.Request().Context(), "stage cover image", "err", err)
		return respond(c, http.StatusInternalServerError, nil, "could not read cover image file")
	}
	defer removeStaged(cover)

	ctx, cancel := context.WithTimeout(c.Request().Context(), uploadTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		FullName:       c.FormValue("fullName"),
		Email:          c.FormValue("email"),
		Username:       c.FormValue("username"),
		Password:       c.FormValue("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusCreated, u, "user registered successfully")
}

// Login: JSON or form body with username or email and password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, nil, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Auth.Login(ctx, service.LoginInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.setSessionCookies(c, sess)
	return respond(c, http.StatusOK, sessionResp{
		User:         sess.User,
		AccessToken:  sess.AccessToken.Token,
		RefreshToken: sess.RefreshToken.Token,
	}, "user logged in successfully")
}

// Refresh: the refresh token comes from the refreshToken cookie or the
// refreshToken body field; the pair is rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(RefreshTokenCookie); err == nil {
		raw = strings.TrimSpace(ck.Value)
	}
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = req.RefreshToken
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.setSessionCookies(c, sess)
	return respond(c, http.StatusOK, sessionResp{
		User:         sess.User,
		AccessToken:  sess.AccessToken.Token,
		RefreshToken: sess.RefreshToken.Token,
	}, "access token refreshed")
}

// Logout: protected; clears the stored refresh token and both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, middleware.UserID(c)); err != nil {
		return fail(c, h.Log, err)
	}
	h.clearSessionCookies(c)
	return respond(c, http.StatusOK, echo.Map{}, "user logged out")
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.CurrentUser(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusOK, u, "current user fetched successfully")
}

// ChangePassword ends the current session on success, so the cookies are
// cleared as on logout.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, nil, "invalid body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, middleware.UserID(c), req.OldPassword, req.NewPassword); err != nil {
		return fail(c, h.Log, err)
	}
	h.clearSessionCookies(c)
	return respond(c, http.StatusOK, echo.Map{}, "password changed successfully")
}

// Profile is the public channel view of a user.
func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.Profile(ctx, c.Param("username"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return respond(c, http.StatusOK, u, "channel fetched successfully")
}

func (h *AuthHandler) setSessionCookies(c echo.Context, sess service.Session) {
	c.SetCookie(h.cookie(middleware.AccessTokenCookie, sess.AccessToken.Token, sess.AccessToken.Exp))
	c.SetCookie(h.cookie(RefreshTokenCookie, sess.RefreshToken.Token, sess.RefreshToken.Exp))
}

func (h *AuthHandler) clearSessionCookies(c echo.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		ck := h.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// stage copies the multipart file in field to UploadTmpDir and returns its
// path, or "" when the field is absent.
func (h *AuthHandler) stage(c echo.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(h.Cfg.UploadTmpDir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.CreateTemp(h.Cfg.UploadTmpDir, "upload-*"+safeExt(fh.Filename))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func removeStaged(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

// safeExt keeps short alphanumeric extensions, which the uploader uses to
// pick a content type.
func safeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}
