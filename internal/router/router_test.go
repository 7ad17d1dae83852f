package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/videotube-api/internal/config"
	"github.com/iliyamo/videotube-api/internal/handler"
	"github.com/iliyamo/videotube-api/internal/logging"
	"github.com/iliyamo/videotube-api/internal/middleware"
	"github.com/iliyamo/videotube-api/internal/repository"
	"github.com/iliyamo/videotube-api/internal/service"
)

const accessSecret = "access-secret"

type cdn struct{}

func (cdn) Upload(context.Context, string) (string, error) {
	return "https://cdn.example.com/avatar.png", nil
}

// newServer wires the production route table over in-memory backends.
func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := service.NewAuthService(repository.NewMemoryUserRepo(bcrypt.MinCost), cdn{}, nil, service.TokenConfig{
		AccessSecret:  accessSecret,
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	}, logging.Discard())
	h := handler.NewAuthHandler(config.Config{UploadTmpDir: t.TempDir()}, svc, logging.Discard())

	e := echo.New()
	RegisterRoutes(e)
	RegisterAuth(e, h, accessSecret, middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "test:rl",
	}, rdb))
	RegisterPublic(e, h, middleware.NewRedisCache(config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "path_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 16,
	}, rdb))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// signUp registers alice and returns her access token.
func signUp(t *testing.T, e *echo.Echo) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"fullName": "Alice Liddell",
		"email":    "alice@example.com",
		"username": "alice",
		"password": "wonderland",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("avatar", "avatar.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := serve(e, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(e, jsonRequest(http.MethodPost, "/v1/auth/login", `{"username":"alice","password":"wonderland"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.AccessTokenCookie {
			return ck.Value
		}
	}
	t.Fatal("login set no access token cookie")
	return ""
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHealthRoute(t *testing.T) {
	e := newServer(t)
	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestAccountRoutesRequireAccessToken(t *testing.T) {
	e := newServer(t)
	token := signUp(t, e)

	routes := []struct{ method, target string }{
		{http.MethodPost, "/v1/auth/logout"},
		{http.MethodGet, "/v1/users/me"},
		{http.MethodPost, "/v1/users/me/password"},
	}
	for _, r := range routes {
		rec := serve(e, httptest.NewRequest(r.method, r.target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.target)
	}

	req := withToken(jsonRequest(http.MethodPost, "/v1/users/me/password",
		`{"oldPassword":"wonderland","newPassword":"looking-glass"}`), token)
	assert.Equal(t, http.StatusOK, serve(e, req).Code)

	rec := serve(e, withToken(httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil), token))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionRoutesAreRateLimited(t *testing.T) {
	for _, target := range []string{"/v1/auth/register", "/v1/auth/login", "/v1/auth/refresh"} {
		t.Run(target, func(t *testing.T) {
			e := newServer(t)
			for i := 0; i < 2; i++ {
				rec := serve(e, jsonRequest(http.MethodPost, target, `{}`))
				assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
				assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
			}
			rec := serve(e, jsonRequest(http.MethodPost, target, `{}`))
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		})
	}
}

func TestLogoutIsNotRateLimited(t *testing.T) {
	e := newServer(t)
	token := signUp(t, e)

	for i := 0; i < 5; i++ {
		rec := serve(e, withToken(httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil), token))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestSessionRoutesAreBodyLimited(t *testing.T) {
	e := newServer(t)
	big := bytes.Repeat([]byte("a"), 13<<20)

	for _, target := range []string{"/v1/auth/register", "/v1/auth/login"} {
		req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(big))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		assert.Equal(t, http.StatusRequestEntityTooLarge, serve(e, req).Code, target)
	}
}

func TestCurrentUserRouteShadowsProfile(t *testing.T) {
	e := newServer(t)
	token := signUp(t, e)

	rec := serve(e, withToken(httptest.NewRequest(http.MethodGet, "/v1/users/me", nil), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))

	var env struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "alice", env.Data.Username)
}

func TestProfileRouteIsCached(t *testing.T) {
	e := newServer(t)
	signUp(t, e)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/users/alice", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/v1/users/alice", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}
