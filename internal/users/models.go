package users

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	LoginName    string    `json:"login_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialized
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser is the payload accepted on signup. The admin flag is deliberately
// absent: accounts can not self-register as admin.
type NewUser struct {
	Name      string `json:"name" validate:"required"`
	Surname   string `json:"surname" validate:"required"`
	LoginName string `json:"login_name" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
}
