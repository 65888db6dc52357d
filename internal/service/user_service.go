package service

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/access-control/internal/auth"
	"github.com/spec-kit/access-control/internal/domain"
	"github.com/spec-kit/access-control/internal/events"
	"github.com/spec-kit/access-control/internal/repository"
	apperrors "github.com/spec-kit/access-control/pkg/util/errorutil"
)

// CreateUserInput carries the fields accepted when creating an account.
type CreateUserInput struct {
	Username string      `json:"username" validate:"required,max=64,username"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"min=8,max=72"`
	Role     domain.Role `json:"role" validate:"oneof=admin standard"`
	CardUID  *string     `json:"cardUid" validate:"omitempty,min=1,max=64"`
}

// UserService manages account records.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	bcryptCost int
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, bcryptCost int, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      users,
		dispatcher: dispatcher,
		bcryptCost: auth.ClampCost(bcryptCost),
		validate:   newValidator(),
		logger:     logger,
	}
}

// Create validates and stores a new account. A taken username is rejected
// before any hashing work is done.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = domain.RoleStandard
	}
	if err := s.validateCreate(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, usernameTaken(in.Username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		Active:       true,
		CardUID:      in.CardUID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username or email already registered", map[string]any{"username": in.Username})
		}
		return nil, apperrors.NewInternalError(err)
	}

	if s.dispatcher != nil {
		event := events.New(events.EventUserCreated, user.ID,
			events.UserCreatedPayload{Username: user.Username, Role: string(user.Role)})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
		}
	}
	return user, nil
}

// List returns accounts matching filter.
func (s *UserService) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// FindByUsername returns the account with the given username.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// EnsureAdmin creates an administrator unless the username already exists.
// It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	_, err := s.Create(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// newValidator reports field errors under their JSON names. Usernames must
// not contain whitespace or "@" so they never look like an email identifier.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), " \t\r\n@")
	})
	return v
}

func (s *UserService) validateCreate(in CreateUserInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return apperrors.NewValidationError("invalid user", details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "must not contain spaces or @"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func usernameTaken(username string) error {
	return apperrors.NewConflict("username already registered", map[string]any{"username": username})
}
