package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry provides access to account records.
type Registry interface {
	// GetByID retrieves tenant by UUID string.
	GetByID(ctx context.Context, tenantID string) (*Tenant, error)

	// ListAll returns all tenants ordered by email.
	ListAll(ctx context.Context) ([]*Tenant, error)

	// Create inserts a new tenant row and populates ID and timestamps.
	Create(ctx context.Context, t *Tenant) error

	// UpdateTier changes the subscription tier of a tenant.
	UpdateTier(ctx context.Context, tenantID string, tier Tier) error
}

// PostgresRegistry implements Registry on the users table.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) GetByID(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := pgxscan.Get(ctx, r.pool, &t, `
		SELECT id, email, company_name, tier, created_at, updated_at
		FROM users
		WHERE id = $1
	`, tenantID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrTenantNotFound
		}
		var pgErr *pgconn.PgError
		// 22P02: malformed uuid, which cannot match any row.
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return &t, nil
}

func (r *PostgresRegistry) ListAll(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := pgxscan.Select(ctx, r.pool, &tenants, `
		SELECT id, email, company_name, tier, created_at, updated_at
		FROM users
		ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (r *PostgresRegistry) Create(ctx context.Context, t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is nil")
	}
	if t.Tier == "" {
		t.Tier = TierFreemium
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, company_name, tier)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, t.Email, t.CompanyName, t.Tier).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) UpdateTier(ctx context.Context, tenantID string, tier Tier) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET tier = $2, updated_at = NOW()
		WHERE id = $1
	`, tenantID, tier)
	if err != nil {
		return fmt.Errorf("update tenant tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

var _ Registry = (*PostgresRegistry)(nil)
