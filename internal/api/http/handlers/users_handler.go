package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/access-control/internal/api/dto"
	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/repository"
	"github.com/spec-kit/access-control/internal/service"
	apperrors "github.com/spec-kit/access-control/pkg/util/errorutil"
)

// UsersHandler exposes account management endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Create handles POST /auth/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.users.Create(c.UserContext(), service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
		CardUID:  req.CardUID,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.UserResponse{User: user.Public()})
}

// List handles GET /auth/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	filter := repository.UserFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if role := c.Query("role"); role != "" {
		r := domain.Role(role)
		if !r.Valid() {
			return apperrors.NewValidationError("invalid role filter", map[string]any{"role": role})
		}
		filter.Role = &r
	}
	if active := c.Query("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return apperrors.NewValidationError("invalid active filter", map[string]any{"active": active})
		}
		filter.Active = &v
	}

	users, err := h.users.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.UsersResponse{Users: dto.PublicUsers(users)})
}

// Get handles GET /auth/users/:username.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.FindByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return err
	}
	return c.JSON(dto.UserResponse{User: user.Public()})
}
