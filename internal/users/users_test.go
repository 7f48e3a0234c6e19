package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tienda-service/internal/auth"
)

func newTestConf(t *testing.T) (*Conf, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conf, err := NewConf(db)
	require.NoError(t, err)
	return conf, mock
}

func TestInsertUserHashesPassword(t *testing.T) {
	conf, mock := newTestConf(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "Kanchan", "Srivastava", "kanchan", "kanchan@example.com", sqlmock.AnyArg(), false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	user, err := conf.InsertUser(context.Background(), NewUser{
		Name:      "Kanchan",
		Surname:   "Srivastava",
		LoginName: "kanchan",
		Email:     "kanchan@example.com",
		Password:  "s3cret-pass",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUserDuplicate(t *testing.T) {
	conf, mock := newTestConf(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := conf.InsertUser(context.Background(), NewUser{
		Name:      "Kanchan",
		Surname:   "Srivastava",
		LoginName: "kanchan",
		Email:     "kanchan@example.com",
		Password:  "s3cret-pass",
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func userRow(t *testing.T, password string, isAdmin bool) *sqlmock.Rows {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "surname", "login_name", "email", "password_hash", "is_admin", "created_at", "updated_at"}).
		AddRow("user-1", "Kanchan", "Srivastava", "kanchan", "kanchan@example.com", string(hash), isAdmin, now, now)
}

func TestAuthenticateSuccess(t *testing.T) {
	conf, mock := newTestConf(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("kanchan").
		WillReturnRows(userRow(t, "s3cret-pass", false))

	user, err := conf.Authenticate(context.Background(), "kanchan", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticateWrongPassword(t *testing.T) {
	conf, mock := newTestConf(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("kanchan").
		WillReturnRows(userRow(t, "s3cret-pass", false))

	_, err := conf.Authenticate(context.Background(), "kanchan", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownLogin(t *testing.T) {
	conf, mock := newTestConf(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := conf.Authenticate(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdminIdempotent(t *testing.T) {
	conf, mock := newTestConf(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	user, err := conf.EnsureAdmin(context.Background(), NewUser{
		Name:      "Admin",
		Surname:   "Admin",
		LoginName: "admin",
		Email:     "admin@example.com",
		Password:  "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Empty(t, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoles(t *testing.T) {
	assert.Equal(t, []string{auth.RoleUser}, User{}.Roles())
	assert.Equal(t, []string{auth.RoleUser, auth.RoleAdmin}, User{IsAdmin: true}.Roles())
}
