package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"tienda-service/internal/auth"
)

var (
	// ErrAlreadyExists reports a signup with a login name or email that is
	// already taken.
	ErrAlreadyExists = errors.New("login name or email already registered")

	// ErrInvalidCredentials covers both an unknown login name and a wrong
	// password, so a caller can not probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const uniqueViolation = "23505"

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// InsertUser hashes the password and persists a new non-admin account.
func (c *Conf) InsertUser(ctx context.Context, newUser NewUser) (User, error) {
	return c.insert(ctx, newUser, false)
}

func (c *Conf) insert(ctx context.Context, newUser NewUser, isAdmin bool) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newUser.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Name:         newUser.Name,
		Surname:      newUser.Surname,
		LoginName:    newUser.LoginName,
		Email:        newUser.Email,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	}

	query := `
		INSERT INTO users (id, name, surname, login_name, email, password_hash, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = c.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Surname,
		user.LoginName, user.Email, user.PasswordHash, user.IsAdmin).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrAlreadyExists
		}
		return User{}, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

// Authenticate looks the account up by login name and checks the password
// against the stored bcrypt hash.
func (c *Conf) Authenticate(ctx context.Context, loginName, password string) (User, error) {
	query := `
		SELECT id, name, surname, login_name, email, password_hash, is_admin, created_at, updated_at
		FROM users
		WHERE login_name = $1
	`
	var user User
	err := c.db.QueryRowContext(ctx, query, loginName).Scan(&user.ID, &user.Name,
		&user.Surname, &user.LoginName, &user.Email, &user.PasswordHash,
		&user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account if the login name is not
// taken yet. Safe to run on every startup.
func (c *Conf) EnsureAdmin(ctx context.Context, admin NewUser) (User, error) {
	user, err := c.insert(ctx, admin, true)
	if errors.Is(err, ErrAlreadyExists) {
		return User{}, nil
	}
	return user, err
}

// Roles derives the authorization roles carried by the session token.
func (u User) Roles() []string {
	roles := []string{auth.RoleUser}
	if u.IsAdmin {
		roles = append(roles, auth.RoleAdmin)
	}
	return roles
}
