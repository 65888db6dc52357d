package domain

import "time"

// Role enumerates account roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStandard
}

// User is the stored account record.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CardUID      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the projection returned to clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Public strips credential material from the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}
