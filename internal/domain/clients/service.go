package clients

import (
	"context"
	"time"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain/documents"
	"easyentrepreneur/pkg/logger"
)

// Service provides business operations for the client directory.
type Service struct {
	repo Repository
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a client directory service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ documents.ClientDirectory = (*Service)(nil)

// Create validates and stores a new client for the account.
func (s *Service) Create(ctx context.Context, tenantID string, c *Client) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := s.now()
	c.ID = id.New()
	c.TenantID = tenantID
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		c.ID = id.ID{}
		return err
	}

	logger.Info(ctx, "client created", "id", c.ID, "name", c.Name)
	return nil
}

// GetByID retrieves a client owned by the account.
func (s *Service) GetByID(ctx context.Context, tenantID string, clientID id.ID) (*Client, error) {
	return s.repo.GetByID(ctx, tenantID, clientID)
}

// List returns the account's clients ordered by name.
func (s *Service) List(ctx context.Context, tenantID string) ([]*Client, error) {
	items, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Client{}
	}
	return items, nil
}

// Snapshot returns the party fields of a client for copying onto a document.
func (s *Service) Snapshot(ctx context.Context, tenantID string, clientID id.ID) (documents.Client, error) {
	c, err := s.repo.GetByID(ctx, tenantID, clientID)
	if err != nil {
		return documents.Client{}, err
	}
	return c.Snapshot(), nil
}
