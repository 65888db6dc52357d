package dto

import "github.com/spec-kit/access-control/internal/domain"

// CreateUserRequest payload for POST /auth/users.
type CreateUserRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	CardUID  *string `json:"cardUid,omitempty"`
}

// UserResponse wraps a single public user.
type UserResponse struct {
	User domain.PublicUser `json:"user"`
}

// UsersResponse wraps a list of public users.
type UsersResponse struct {
	Users []domain.PublicUser `json:"users"`
}

// PublicUsers projects users for output.
func PublicUsers(users []domain.User) []domain.PublicUser {
	out := make([]domain.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}
