package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/access-control/internal/domain"
)

const pgUniqueViolation = "23505"

// UserRepository defines persistence access for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByIdentifier matches identifier against both username and email.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

// UserFilter defines query params for user listing.
type UserFilter struct {
	Role   *domain.Role
	Active *bool
	Limit  int
	Offset int
}

func (f UserFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 200 {
		return 50
	}
	return f.Limit
}

func (f UserFilter) offset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, role, active, card_uid, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, password_hash, role, active, card_uid)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Active,
		user.CardUID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// GetByID compares against the uuid primary key directly; ids that are not
// uuids cannot match any row.
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.getOne(ctx, query, parsed)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return r.getOne(ctx, query, username)
}

func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username=$1 OR lower(email)=lower($1)
        ORDER BY (username=$1) DESC LIMIT 1`
	return r.getOne(ctx, query, identifier)
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		conditions = append(conditions, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active=$%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit(), filter.offset())
	query += fmt.Sprintf(" ORDER BY username LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Active,
		&user.CardUID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}
