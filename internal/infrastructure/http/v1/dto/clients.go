package dto

import (
	"time"

	"github.com/samber/lo"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain/clients"
)

// CreateClientRequest saves a client in the account's directory.
type CreateClientRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	Zip     string `json:"zip" binding:"required"`
	City    string `json:"city" binding:"required"`
	Siret   string `json:"siret" binding:"required"`
	VAT     string `json:"vat,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateClientRequest) ToEntity() *clients.Client {
	return &clients.Client{
		Name:    r.Name,
		Address: r.Address,
		Zip:     r.Zip,
		City:    r.City,
		Siret:   r.Siret,
		VAT:     r.VAT,
		Phone:   r.Phone,
	}
}

// ClientResponse represents a saved client in API responses.
type ClientResponse struct {
	ID        id.ID     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Zip       string    `json:"zip"`
	City      string    `json:"city"`
	Siret     string    `json:"siret"`
	VAT       string    `json:"vat,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromClient creates response DTO from domain entity.
func FromClient(c *clients.Client) ClientResponse {
	return ClientResponse{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		Zip:       c.Zip,
		City:      c.City,
		Siret:     c.Siret,
		VAT:       c.VAT,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ClientListResponse lists the directory ordered by name.
type ClientListResponse struct {
	Items []ClientResponse `json:"items"`
}

// NewClientListResponse maps every client.
func NewClientListResponse(items []*clients.Client) ClientListResponse {
	return ClientListResponse{Items: lo.Map(items, func(c *clients.Client, _ int) ClientResponse { return FromClient(c) })}
}
