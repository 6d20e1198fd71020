package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain/clients"
	"easyentrepreneur/internal/infrastructure/http/v1/dto"
)

// ClientService is the part of clients.Service the handler needs.
type ClientService interface {
	Create(ctx context.Context, tenantID string, c *clients.Client) error
	GetByID(ctx context.Context, tenantID string, clientID id.ID) (*clients.Client, error)
	List(ctx context.Context, tenantID string) ([]*clients.Client, error)
}

// ClientHandler serves the client directory.
type ClientHandler struct {
	*BaseHandler
	service ClientService
}

// NewClientHandler creates a client directory handler.
func NewClientHandler(base *BaseHandler, service ClientService) *ClientHandler {
	return &ClientHandler{BaseHandler: base, service: service}
}

// List handles GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}

	items, err := h.service.List(c.Request.Context(), tenantID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewClientListResponse(items))
}

// Create handles POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}

	var req dto.CreateClientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	client := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), tenantID, client); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromClient(client))
}

// Get handles GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	tenantID, ok := h.TenantID(c)
	if !ok {
		return
	}
	clientID, ok := h.ParseID(c)
	if !ok {
		return
	}

	client, err := h.service.GetByID(c.Request.Context(), tenantID, clientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromClient(client))
}
