package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/core/tx"
	"easyentrepreneur/internal/domain"
	"easyentrepreneur/pkg/logger"
)

// QuotaEnforcer rejects a creation when the tenant's monthly allowance is used up.
type QuotaEnforcer interface {
	Enforce(ctx context.Context, tenantID string) error
}

// Sequencer allocates a display number and reserves it through the callback.
type Sequencer interface {
	Allocate(ctx context.Context, req numerator.Request, reserve numerator.ReserveFunc) (string, error)
}

// ClientDirectory resolves a saved client of the tenant into the party
// fields copied onto a document.
type ClientDirectory interface {
	Snapshot(ctx context.Context, tenantID string, clientID id.ID) (Client, error)
}

// Service provides business operations for invoices and quotes.
type Service struct {
	repo      Repository
	quota     QuotaEnforcer
	numbers   Sequencer
	clients   ClientDirectory
	txManager tx.Manager
	events    domain.EventPublisher
	audit     domain.AuditLog
	hooks     *domain.HookRegistry[*Document]
	now       func() time.Time
}

// ServiceConfig wires the service dependencies.
type ServiceConfig struct {
	Repo      Repository
	Quota     QuotaEnforcer
	Numbers   Sequencer
	Clients   ClientDirectory // optional; required to accept ClientID
	TxManager tx.Manager
	Events    domain.EventPublisher
	Audit     domain.AuditLog // optional
	Clock     func() time.Time
}

// NewService creates a new document service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repo,
		quota:     cfg.Quota,
		numbers:   cfg.Numbers,
		clients:   cfg.Clients,
		txManager: cfg.TxManager,
		events:    cfg.Events,
		audit:     cfg.Audit,
		hooks:     domain.NewHookRegistry[*Document](),
		now:       now,
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// Create validates doc, checks the quota, then numbers and stores it.
// Each numbering attempt inserts the document and its outbox event in its own
// transaction, so a number collision rolls back only that attempt.
func (s *Service) Create(ctx context.Context, kind numerator.Kind, tenantID string, doc *Document) error {
	if !kind.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown document kind %q", kind))
	}
	doc.Kind = kind
	doc.TenantID = tenantID

	if err := s.resolveClient(ctx, tenantID, doc); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	if err := s.quota.Enforce(ctx, tenantID); err != nil {
		return err
	}

	doc.CalculateTotals()
	now := s.now()
	if doc.IssueDate.IsZero() {
		doc.IssueDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}

	req := numerator.Request{TenantID: tenantID, Kind: kind, Year: now.Year()}
	number, err := s.numbers.Allocate(ctx, req, func(ctx context.Context, number string) error {
		doc.ID = id.New()
		doc.Number = number
		doc.CreatedAt = now
		doc.UpdatedAt = now
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, doc); err != nil {
				return err
			}
			if err := s.events.Publish(ctx, newEvent(EventCreated, doc)); err != nil {
				return fmt.Errorf("publish %s: %w", EventCreated, err)
			}
			return s.recordAudit(ctx, domain.AuditActionCreate, doc)
		})
	})
	if err != nil {
		doc.ID = id.ID{}
		doc.Number = ""
		return err
	}
	doc.Number = number

	if err := s.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "document created",
		"kind", kind,
		"id", doc.ID,
		"number", doc.Number)

	return nil
}

// resolveClient replaces doc.Client with the saved client doc.ClientID names.
// The copy is frozen on the document; later edits to the client do not change it.
func (s *Service) resolveClient(ctx context.Context, tenantID string, doc *Document) error {
	if doc.ClientID == nil {
		return nil
	}
	if s.clients == nil {
		return apperror.NewValidation("clientId is not supported").WithDetail("field", "clientId")
	}
	snapshot, err := s.clients.Snapshot(ctx, tenantID, *doc.ClientID)
	if err != nil {
		return err
	}
	doc.Client = snapshot
	return nil
}

// GetByID retrieves a document owned by the tenant.
func (s *Service) GetByID(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, kind, tenantID, docID)
	if err != nil {
		return nil, err
	}
	doc.Kind = kind
	return doc, nil
}

// GetByNumber retrieves a document by its display number.
func (s *Service) GetByNumber(ctx context.Context, kind numerator.Kind, tenantID, number string) (*Document, error) {
	doc, err := s.repo.GetByNumber(ctx, kind, tenantID, number)
	if err != nil {
		return nil, err
	}
	doc.Kind = kind
	return doc, nil
}

// List returns a page of the tenant's documents.
func (s *Service) List(ctx context.Context, kind numerator.Kind, tenantID string, filter domain.ListFilter) (domain.ListResult[*Document], error) {
	filter.Normalize()
	var result domain.ListResult[*Document]
	load := func(ctx context.Context) error {
		var err error
		result, err = s.repo.List(ctx, kind, tenantID, filter)
		return err
	}
	var err error
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		err = ro.ReadOnly(ctx, load)
	} else {
		err = load(ctx)
	}
	if err != nil {
		return result, err
	}
	for _, doc := range result.Items {
		doc.Kind = kind
	}
	return result, nil
}

// Delete soft-deletes a document. Its number stays taken.
func (s *Service) Delete(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) error {
	doc, err := s.GetByID(ctx, kind, tenantID, docID)
	if err != nil {
		return err
	}
	if doc.DeletionMark {
		return nil
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, kind, tenantID, docID); err != nil {
			return err
		}
		if err := s.events.Publish(ctx, newEvent(EventDeleted, doc)); err != nil {
			return fmt.Errorf("publish %s: %w", EventDeleted, err)
		}
		doc.DeletionMark = true
		return s.recordAudit(ctx, domain.AuditActionDelete, doc)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterDelete, doc); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}
	logger.Info(ctx, "document deleted", "kind", kind, "id", docID, "number", doc.Number)
	return nil
}

// History returns the audit trail of a document owned by the tenant.
func (s *Service) History(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID, limit int) ([]domain.AuditEntry, error) {
	if _, err := s.GetByID(ctx, kind, tenantID, docID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	return s.audit.History(ctx, string(kind), docID, limit)
}

func (s *Service) recordAudit(ctx context.Context, action domain.AuditAction, doc *Document) error {
	if s.audit == nil {
		return nil
	}
	snapshot, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal audit snapshot: %w", err)
	}
	err = s.audit.Log(ctx, domain.AuditEntry{
		EntityType: string(doc.Kind),
		EntityID:   doc.ID,
		Action:     action,
		UserID:     doc.TenantID,
		Snapshot:   snapshot,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}
