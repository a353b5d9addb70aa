package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/defect-dispatch/internal/domain"
	apperrors "github.com/spec-kit/defect-dispatch/pkg/util/errorutil"
)

// UserRepository defines read access to the user directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error)
}

var userColumns = []string{"id", "name", "email", "role", "active", "created_at", "updated_at"}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query, args, err := psql.
		Insert("users").
		Columns("id", "name", "email", "role", "active").
		Values(user.ID, user.Name, user.Email, user.Role, user.Active).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build user Create query: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("user already exists", map[string]any{"user_id": user.ID})
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user GetByID query: %w", err)
	}
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"role": roles, "active": true}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByRoles query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.Role,
			&user.Active,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository returns an in-memory directory seeded with users.
func NewMemoryUserRepository(seed ...domain.User) UserRepository {
	repo := &memoryUserRepository{users: make(map[string]domain.User, len(seed))}
	for _, u := range seed {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return apperrors.NewConflict("user already exists", map[string]any{"user_id": user.ID})
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	return &user, nil
}

func (r *memoryUserRepository) ListByRoles(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	wanted := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		wanted[role] = struct{}{}
	}
	r.mu.RLock()
	var result []domain.User
	for _, user := range r.users {
		if _, ok := wanted[user.Role]; ok && user.Active {
			result = append(result, user)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
