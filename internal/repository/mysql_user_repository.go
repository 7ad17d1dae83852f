package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/videotube-api/internal/model"
	"github.com/iliyamo/videotube-api/internal/utils"
)

// MySQL schema expected by MySQLUserRepo:
//
//	CREATE TABLE users (
//	  id                 CHAR(36)     NOT NULL PRIMARY KEY,
//	  username           VARCHAR(64)  NOT NULL UNIQUE,
//	  email              VARCHAR(255) NOT NULL UNIQUE,
//	  full_name          VARCHAR(255) NOT NULL,
//	  avatar             VARCHAR(1024) NOT NULL,
//	  cover_image        VARCHAR(1024) NOT NULL DEFAULT '',
//	  password_hash      VARCHAR(255) NOT NULL,
//	  refresh_token_hash CHAR(64)     NULL,
//	  created_at         DATETIME     NOT NULL,
//	  updated_at         DATETIME     NOT NULL
//	);

const (
	userColumns    = "id,username,email,full_name,avatar,cover_image,password_hash,refresh_token_hash,created_at,updated_at"
	profileColumns = "id,username,email,full_name,avatar,cover_image,'',NULL,created_at,updated_at"

	mysqlDuplicateEntry = 1062
)

type MySQLUserRepo struct {
	DB   *sql.DB
	cost int
}

func NewMySQLUserRepo(db *sql.DB, bcryptCost int) *MySQLUserRepo {
	return &MySQLUserRepo{DB: db, cost: bcryptCost}
}

func (r *MySQLUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (model.User, error) {
	username, email = normalizeIdentity(username, email)
	switch {
	case username != "" && email != "":
		return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1", username, email)
	case username != "":
		return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username)
	case email != "":
		return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	}
	return model.User{}, ErrNotFound
}

func (r *MySQLUserRepo) FindByID(ctx context.Context, id string) (model.User, error) {
	return r.queryOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *MySQLUserRepo) FindProfileByID(ctx context.Context, id string) (model.User, error) {
	return r.queryOne(ctx, "SELECT "+profileColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *MySQLUserRepo) queryOne(ctx context.Context, query string, args ...any) (model.User, error) {
	var (
		u       model.User
		refresh sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
		&u.PasswordHash, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.RefreshTokenHash = refresh.String
	return u, nil
}

// Create inserts the user and returns its ID.
func (r *MySQLUserRepo) Create(ctx context.Context, nu model.NewUser) (string, error) {
	hash, err := utils.HashPassword(nu.Password, r.cost)
	if err != nil {
		return "", err
	}
	username, email := normalizeIdentity(nu.Username, nu.Email)
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id,username,email,full_name,avatar,cover_image,password_hash,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)",
		id, username, email, nu.FullName, nu.Avatar, nu.CoverImage, hash, now, now)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return "", ErrDuplicate
		}
		return "", err
	}
	return id, nil
}

func (r *MySQLUserRepo) SetRefreshToken(ctx context.Context, id, tokenHash string) error {
	return r.exec(ctx,
		"UPDATE users SET refresh_token_hash=?, updated_at=? WHERE id=?",
		sql.NullString{String: tokenHash, Valid: tokenHash != ""}, time.Now().UTC(), id)
}

func (r *MySQLUserRepo) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string) error {
	if oldHash == "" {
		return ErrNotFound
	}
	return r.exec(ctx,
		"UPDATE users SET refresh_token_hash=?, updated_at=? WHERE id=? AND refresh_token_hash=?",
		newHash, time.Now().UTC(), id, oldHash)
}

func (r *MySQLUserRepo) UpdatePassword(ctx context.Context, id, password string) error {
	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return err
	}
	return r.exec(ctx,
		"UPDATE users SET password_hash=?, refresh_token_hash=NULL, updated_at=? WHERE id=?",
		hash, time.Now().UTC(), id)
}

// exec runs an UPDATE and maps zero affected rows to ErrNotFound.
func (r *MySQLUserRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
