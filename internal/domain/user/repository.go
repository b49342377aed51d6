package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines user data access interface. Accounts are owned by the storefront; this service only reads them.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)

	// RandomVerifiedCustomers samples up to limit verified non-admin users not listed in exclude
	RandomVerifiedCustomers(ctx context.Context, exclude []uuid.UUID, limit int) ([]User, error)
}

// repository implements Repository
type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, first_name, last_name, role, email_verified, created_at`

// GetByEmail retrieves user by email
func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

func (r *repository) RandomVerifiedCustomers(ctx context.Context, exclude []uuid.UUID, limit int) ([]User, error) {
	ids := make([]string, len(exclude))
	for i, id := range exclude {
		ids[i] = id.String()
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email_verified = TRUE
		  AND role <> 'admin'
		  AND NOT (id = ANY($1::uuid[]))
		ORDER BY random()
		LIMIT $2
	`

	users := make([]User, 0)
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids), limit); err != nil {
		return nil, fmt.Errorf("sample users: %w", err)
	}
	return users, nil
}
