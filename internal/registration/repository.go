// Package registration reads the child registrations that bookings are made
// against. Rows are written by the club's enrollment system; this service
// only resolves and checks ownership.
package registration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

// ErrNotFound covers both a missing registration and one owned by somebody
// else. Callers must not be able to tell the two apart.
var ErrNotFound = errors.New("registration not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOwned returns the registration only when it exists and belongs to
// ownerUID.
func (r *Repository) GetOwned(ctx context.Context, id uuid.UUID, ownerUID string) (*models.Registration, error) {
	var reg models.Registration
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_uid, child_name, category, created_at
		FROM registrations
		WHERE id = $1 AND owner_uid = $2
	`, id, ownerUID).Scan(&reg.ID, &reg.OwnerUID, &reg.ChildName, &reg.Category, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}
