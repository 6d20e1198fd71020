// Package client_repo provides the PostgreSQL repository for the client directory.
package client_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain/clients"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
)

const clientsTable = "clients"

// Repo implements clients.Repository.
type Repo struct {
	db         postgres.QuerierProvider
	selectCols []string
}

// New creates a client repository.
func New(db postgres.QuerierProvider) *Repo {
	return &Repo{
		db:         db,
		selectCols: postgres.ExtractDBColumns[clients.Client](),
	}
}

var _ clients.Repository = (*Repo)(nil)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a client.
func (r *Repo) Create(ctx context.Context, c *clients.Client) error {
	sql, args, err := r.insertQuery(c).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", clientsTable, err)
	}
	return nil
}

func (r *Repo) insertQuery(c *clients.Client) squirrel.InsertBuilder {
	data := postgres.PickColumns(postgres.StructToMap(c), r.selectCols)
	return builder().Insert(clientsTable).SetMap(data)
}

// GetByID retrieves a client owned by the account.
func (r *Repo) GetByID(ctx context.Context, tenantID string, clientID id.ID) (*clients.Client, error) {
	sql, args, err := r.getQuery(tenantID, clientID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c clients.Client
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("client", clientID.String())
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (r *Repo) getQuery(tenantID string, clientID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(r.selectCols...).
		From(clientsTable).
		Where(squirrel.Eq{"user_id": tenantID, "id": clientID}).
		Limit(1)
}

// List returns the account's clients ordered by name.
func (r *Repo) List(ctx context.Context, tenantID string) ([]*clients.Client, error) {
	sql, args, err := r.listQuery(tenantID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []*clients.Client{}
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return items, nil
}

func (r *Repo) listQuery(tenantID string) squirrel.SelectBuilder {
	return builder().
		Select(r.selectCols...).
		From(clientsTable).
		Where(squirrel.Eq{"user_id": tenantID}).
		OrderBy("name ASC", "id ASC")
}
