package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/domain"
	"easyentrepreneur/internal/domain/documents"
	"easyentrepreneur/internal/infrastructure/http/v1/dto"
)

// DocumentService is the part of documents.Service the handler needs.
type DocumentService interface {
	Create(ctx context.Context, kind numerator.Kind, tenantID string, doc *documents.Document) error
	GetByID(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) (*documents.Document, error)
	GetByNumber(ctx context.Context, kind numerator.Kind, tenantID, number string) (*documents.Document, error)
	List(ctx context.Context, kind numerator.Kind, tenantID string, filter domain.ListFilter) (domain.ListResult[*documents.Document], error)
	Delete(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) error
	History(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID, limit int) ([]domain.AuditEntry, error)
}

// DocumentHandler serves one document kind. Invoices and quotes share it.
type DocumentHandler struct {
	*BaseHandler
	service DocumentService
	kind    numerator.Kind
}

// NewDocumentHandler creates a handler for kind.
func NewDocumentHandler(base *BaseHandler, service DocumentService, kind numerator.Kind) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service, kind: kind}
}

// Create handles POST /{kind}s
func (h *DocumentHandler) Create(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc := req.ToEntity(h.kind)
	if err := h.service.Create(c.Request.Context(), h.kind, tenantID, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromDocument(doc))
}

// List handles GET /{kind}s
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}

	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	res, err := h.service.List(c.Request.Context(), h.kind, tenantID, req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(res, dto.FromDocument))
}

// Get handles GET /{kind}s/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), h.kind, tenantID, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// GetByNumber handles GET /{kind}s/number/:number
func (h *DocumentHandler) GetByNumber(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByNumber(c.Request.Context(), h.kind, tenantID, c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Delete handles DELETE /{kind}s/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), h.kind, tenantID, docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// History handles GET /{kind}s/:id/history
func (h *DocumentHandler) History(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), h.kind, tenantID, docID, h.parseLimit(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	h.OK(c, dto.HistoryResponse{Items: entries})
}

func (h *DocumentHandler) parseLimit(c *gin.Context) int {
	var q struct {
		Limit int `form:"limit"`
	}
	_ = c.ShouldBindQuery(&q)
	if q.Limit <= 0 || q.Limit > domain.MaxListLimit {
		return domain.DefaultListLimit
	}
	return q.Limit
}
