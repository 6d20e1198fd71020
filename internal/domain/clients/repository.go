package clients

import (
	"context"

	"easyentrepreneur/internal/core/id"
)

// Repository defines storage operations for the client directory.
// Every read is scoped to the owning account.
type Repository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, tenantID string, clientID id.ID) (*Client, error)

	// List returns all clients of the account ordered by name.
	List(ctx context.Context, tenantID string) ([]*Client, error)
}
