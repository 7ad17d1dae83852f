package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newMySQLRepoWithMock(t *testing.T) (*MySQLUserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLUserRepo(db, bcrypt.MinCost), mock
}

var userRowColumns = []string{"id", "username", "email", "full_name", "avatar", "cover_image", "password_hash", "refresh_token_hash", "created_at", "updated_at"}

func TestMySQLUserRepo_FindByUsernameOrEmail(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM users WHERE username=\? OR email=\? LIMIT 1`).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "alice", "alice@example.com", "Alice", "https://a", "", "hash", nil, now, now))

	u, err := r.FindByUsernameOrEmail(context.Background(), "ALICE", " alice@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Empty(t, u.RefreshTokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepo_FindByID_NotFound(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id=\? LIMIT 1`).
		WithArgs("u-404").
		WillReturnError(sql.ErrNoRows)

	_, err := r.FindByID(context.Background(), "u-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepo_Create(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", "Test User", "https://cdn.example.com/a.png", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := r.Create(context.Background(), newUser("Alice", "alice@example.com"))
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepo_CreateDuplicate(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice' for key 'username'"})

	_, err := r.Create(context.Background(), newUser("alice", "alice@example.com"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMySQLUserRepo_CreateOtherError(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(boom)

	_, err := r.Create(context.Background(), newUser("alice", "alice@example.com"))
	assert.ErrorIs(t, err, boom)
}

func TestMySQLUserRepo_RotateRefreshToken(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET refresh_token_hash=\?, updated_at=\? WHERE id=\? AND refresh_token_hash=\?`).
		WithArgs("new", sqlmock.AnyArg(), "u-1", "old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET refresh_token_hash=\?, updated_at=\? WHERE id=\? AND refresh_token_hash=\?`).
		WithArgs("newer", sqlmock.AnyArg(), "u-1", "old").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, r.RotateRefreshToken(context.Background(), "u-1", "old", "new"))
	assert.ErrorIs(t, r.RotateRefreshToken(context.Background(), "u-1", "old", "newer"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepo_ClearRefreshToken(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET refresh_token_hash=\?, updated_at=\? WHERE id=\?`).
		WithArgs(sql.NullString{}, sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.SetRefreshToken(context.Background(), "u-1", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepo_UpdatePassword(t *testing.T) {
	r, mock := newMySQLRepoWithMock(t)

	mock.ExpectExec(`UPDATE users SET password_hash=\?, refresh_token_hash=NULL, updated_at=\? WHERE id=\?`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.UpdatePassword(context.Background(), "u-1", "n3w"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
