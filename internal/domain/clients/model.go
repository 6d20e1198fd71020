// Package clients provides the per-account client directory.
// A client is a billed party that documents can reference instead of
// repeating the address on every invoice or quote.
package clients

import (
	"strings"
	"time"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain/documents"
)

// Client is a billed party owned by one account.
type Client struct {
	ID       id.ID  `db:"id" json:"id"`
	TenantID string `db:"user_id" json:"-"`

	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
	Zip     string `db:"zip" json:"zip"`
	City    string `db:"city" json:"city"`

	// Siret is the 14-digit French establishment number.
	Siret string `db:"siret" json:"siret"`
	VAT   string `db:"vat" json:"vat,omitempty"`
	Phone string `db:"phone" json:"phone,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate trims every field and checks the required ones.
func (c *Client) Validate() error {
	for _, f := range []*string{&c.Name, &c.Address, &c.Zip, &c.City, &c.Siret, &c.VAT, &c.Phone} {
		*f = strings.TrimSpace(*f)
	}

	required := []struct {
		field string
		value string
	}{
		{"name", c.Name},
		{"address", c.Address},
		{"zip", c.Zip},
		{"city", c.City},
		{"siret", c.Siret},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.NewValidation(r.field + " is required").WithDetail("field", r.field)
		}
	}
	return nil
}

// Snapshot returns the party as it is copied onto a document.
func (c *Client) Snapshot() documents.Client {
	return documents.Client{
		Name:    c.Name,
		Address: c.Address,
		Zip:     c.Zip,
		City:    c.City,
		Siret:   c.Siret,
		VAT:     c.VAT,
		Phone:   c.Phone,
	}
}
