// Package service implements account registration and the session
// lifecycle: login, refresh-token rotation, logout and password change.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/videotube-api/internal/logging"
	"github.com/iliyamo/videotube-api/internal/model"
	"github.com/iliyamo/videotube-api/internal/queue"
	"github.com/iliyamo/videotube-api/internal/repository"
	"github.com/iliyamo/videotube-api/internal/utils"
)

// reservedUsernames collide with static routes under /v1/users.
var reservedUsernames = map[string]bool{"me": true}

// MediaStorage uploads a staged local file and returns its public URL.
type MediaStorage interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// EventPublisher delivers auth events.  Failures are logged, never returned
// to callers of AuthService.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// TokenConfig holds the signing secrets and lifetimes of both token kinds.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// AuthService is the only writer of a user's refresh token.
type AuthService struct {
	users  repository.UserRepository
	media  MediaStorage
	events EventPublisher
	tokens TokenConfig
	log    logging.Logger
}

// NewAuthService wires the service.  events may be nil.
func NewAuthService(users repository.UserRepository, media MediaStorage, events EventPublisher, tokens TokenConfig, log logging.Logger) *AuthService {
	return &AuthService{users: users, media: media, events: events, tokens: tokens, log: log}
}

// RegisterInput is a registration request.  AvatarPath and CoverImagePath
// point at staged local files; CoverImagePath is optional.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the user by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Session is the result of a login or refresh.
type Session struct {
	User         model.User
	AccessToken  utils.AccessToken
	RefreshToken utils.RefreshToken
}

// Register creates an account and returns it without secret fields.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))
	for _, f := range []string{fullName, email, username, strings.TrimSpace(in.Password)} {
		if f == "" {
			return model.User{}, validation("all fields are required")
		}
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return model.User{}, err
	}
	if reservedUsernames[username] {
		return model.User{}, validation("username is reserved")
	}

	// Pre-check only; the store's unique indexes are authoritative.
	if _, err := s.users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return model.User{}, conflict("user with email or username already exists", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, internal("could not check existing users", err)
	}

	if strings.TrimSpace(in.AvatarPath) == "" {
		return model.User{}, validation("avatar file is required")
	}
	avatarURL, err := s.media.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		return model.User{}, &Error{Kind: KindValidation, Message: "avatar upload failed", Err: err}
	}
	var coverURL string
	if strings.TrimSpace(in.CoverImagePath) != "" {
		coverURL, err = s.media.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.log.Warn(ctx, "cover image upload failed", "err", err)
			coverURL = ""
		}
	}

	id, err := s.users.Create(ctx, model.NewUser{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		Password:   in.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return model.User{}, conflict("user with email or username already exists", err)
		case errors.Is(err, bcrypt.ErrPasswordTooLong):
			return model.User{}, &Error{Kind: KindValidation, Message: passwordTooLong, Err: err}
		}
		return model.User{}, internal("could not create user", err)
	}

	created, err := s.users.FindProfileByID(ctx, id)
	if err != nil {
		return model.User{}, internal("something went wrong while registering the user", err)
	}

	s.log.Info(ctx, "user registered", "user_id", id, "username", username)
	s.publish(ctx, queue.EventUserRegistered, created)
	return created.Sanitized(), nil
}

// Login verifies credentials and starts a new session, replacing any
// previous refresh token of the user.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" && email == "" {
		return Session{}, validation("username or email is required")
	}
	if in.Password == "" {
		return Session{}, validation("password is required")
	}

	u, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, notFound("user does not exist")
		}
		return Session{}, internal("could not load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return Session{}, unauthorized("invalid user credentials")
	}

	sess, err := s.issue(u)
	if err != nil {
		return Session{}, err
	}
	if err := s.users.SetRefreshToken(ctx, u.ID, utils.HashRefreshToken(sess.RefreshToken.Token)); err != nil {
		return Session{}, internal("could not store refresh token", err)
	}

	s.log.Info(ctx, "session started", "user_id", u.ID)
	s.publish(ctx, queue.EventSessionStarted, u)
	return sess, nil
}

// Logout clears the stored refresh token of userID.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user does not exist")
		}
		return internal("could not clear refresh token", err)
	}
	s.log.Info(ctx, "session ended", "user_id", userID)
	s.publish(ctx, queue.EventSessionEnded, model.User{ID: userID})
	return nil
}

// Refresh exchanges the current refresh token for a new pair.  A token that
// verifies but is not the stored one is rejected as superseded.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (Session, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Session{}, unauthorized("unauthorized request")
	}
	claims, err := utils.ParseRefreshToken(s.tokens.RefreshSecret, rawToken)
	if err != nil {
		return Session{}, conflict(err.Error(), err)
	}

	u, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, unauthorized("invalid refresh token")
		}
		return Session{}, internal("could not load user", err)
	}
	presented := utils.HashRefreshToken(rawToken)
	if !utils.SameTokenHash(presented, u.RefreshTokenHash) {
		return Session{}, superseded()
	}

	sess, err := s.issue(u)
	if err != nil {
		return Session{}, err
	}
	err = s.users.RotateRefreshToken(ctx, u.ID, presented, utils.HashRefreshToken(sess.RefreshToken.Token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// a concurrent refresh or logout won the update
			return Session{}, superseded()
		}
		return Session{}, internal("could not store refresh token", err)
	}

	s.log.Debug(ctx, "session refreshed", "user_id", u.ID)
	s.publish(ctx, queue.EventSessionRefreshed, u)
	return sess, nil
}

// CurrentUser returns the sanitized record of an authenticated caller.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.FindProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, notFound("user does not exist")
		}
		return model.User{}, internal("could not load user", err)
	}
	return u.Sanitized(), nil
}

// Profile returns the public record for username.
func (s *AuthService) Profile(ctx context.Context, username string) (model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return model.User{}, validation("username is required")
	}
	u, err := s.users.FindByUsernameOrEmail(ctx, username, "")
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, notFound("channel does not exist")
		}
		return model.User{}, internal("could not load user", err)
	}
	return u.Sanitized(), nil
}

// ChangePassword replaces the password after verifying the old one.  The
// store clears the refresh token in the same write, ending the session.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return validation("old and new password are required")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("user does not exist")
		}
		return internal("could not load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, oldPassword) {
		return unauthorized("invalid old password")
	}
	if err := s.users.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return &Error{Kind: KindValidation, Message: passwordTooLong, Err: err}
		}
		return internal("could not update password", err)
	}
	s.log.Info(ctx, "password changed", "user_id", u.ID)
	s.publish(ctx, queue.EventPasswordChanged, u)
	return nil
}

// issue signs a new access/refresh pair for u.
func (s *AuthService) issue(u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.tokens.AccessSecret, u, s.tokens.AccessTTL)
	if err != nil {
		return Session{}, internal("could not issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(s.tokens.RefreshSecret, u.ID, s.tokens.RefreshTTL)
	if err != nil {
		return Session{}, internal("could not issue refresh token", err)
	}
	return Session{User: u.Sanitized(), AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) publish(ctx context.Context, typ string, u model.User) {
	if s.events == nil {
		return
	}
	ev := queue.AuthEvent{Type: typ, UserID: u.ID, Username: u.Username, OccurredAt: time.Now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "publish auth event failed", "type", typ, "user_id", u.ID, "err", err)
	}
}

const passwordTooLong = "password must be at most 72 bytes"

// checkPasswordLength rejects input bcrypt would refuse to hash, before
// any media is uploaded.
func checkPasswordLength(password string) *Error {
	if len(password) > utils.MaxPasswordBytes {
		return validation(passwordTooLong)
	}
	return nil
}

func superseded() *Error {
	return &Error{Kind: KindUnauthorized, Message: ErrTokenSuperseded.Error(), Err: ErrTokenSuperseded}
}
