// Package documents provides invoices and quotes: two kinds of billing
// document that share one shape and differ only in their numbering sequence.
package documents

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/core/types"
)

// Client is the billed party, stored as JSONB.
type Client struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Zip     string `json:"zip,omitempty"`
	City    string `json:"city,omitempty"`
	Siret   string `json:"siret,omitempty"`
	VAT     string `json:"vat,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Line is one billed item. VATRate is a percentage (20 means 20%).
type Line struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	VATRate     decimal.Decimal `json:"vatRate"`
}

// Amount returns quantity * unit price before VAT.
func (l Line) Amount() types.Money {
	return l.Quantity.Mul(l.UnitPrice)
}

// VATAmount returns the VAT due on the line.
func (l Line) VATAmount() types.Money {
	return types.Percent(l.Amount(), l.VATRate)
}

// Document is an invoice or a quote.
// Kind is implied by the table the row lives in and is not stored.
type Document struct {
	ID       id.ID          `db:"id" json:"id"`
	TenantID string         `db:"user_id" json:"-"`
	Kind     numerator.Kind `db:"-" json:"kind"`

	// Number is the display number ("2025-007"), assigned on creation and never changed.
	Number    string    `db:"number" json:"number"`
	IssueDate time.Time `db:"issue_date" json:"issueDate"`

	// ClientID links the directory entry Client was copied from, if any.
	ClientID    *id.ID `db:"client_id" json:"clientId,omitempty"`
	Client      Client `db:"client" json:"client"`
	Lines       []Line `db:"lines" json:"lines"`
	PaymentInfo string `db:"payment_info" json:"paymentInfo,omitempty"`
	LegalNote   string `db:"legal_note" json:"legalNote,omitempty"`

	TotalHT  types.Money `db:"total_ht" json:"totalHT"`
	TotalVAT types.Money `db:"total_vat" json:"totalVAT"`
	TotalTTC types.Money `db:"total_ttc" json:"totalTTC"`

	DeletionMark bool      `db:"deletion_mark" json:"deletionMark"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

var maxVATRate = decimal.NewFromInt(100)

// Validate checks the user-supplied part of the document.
func (d *Document) Validate() error {
	d.Client.Name = strings.TrimSpace(d.Client.Name)
	if d.Client.Name == "" {
		return apperror.NewValidation("client name is required").WithDetail("field", "client.name")
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	for i, l := range d.Lines {
		switch {
		case strings.TrimSpace(l.Description) == "":
			return lineError(i, "description", "description is required")
		case !l.Quantity.IsPositive():
			return lineError(i, "quantity", "quantity must be positive")
		case l.UnitPrice.IsNegative():
			return lineError(i, "unitPrice", "unit price cannot be negative")
		case l.VATRate.IsNegative() || l.VATRate.GreaterThan(maxVATRate):
			return lineError(i, "vatRate", "VAT rate must be between 0 and 100")
		}
	}
	return nil
}

func lineError(i int, field, msg string) *apperror.AppError {
	return apperror.NewValidation(msg).
		WithDetail("field", "lines."+field).
		WithDetail("line", i+1)
}

// CalculateTotals recomputes HT, VAT and TTC from the lines, rounded to cents.
func (d *Document) CalculateTotals() {
	ht, vat := types.Zero(), types.Zero()
	for _, l := range d.Lines {
		ht = ht.Add(l.Amount())
		vat = vat.Add(l.VATAmount())
	}
	d.TotalHT = types.RoundMoney(ht)
	d.TotalVAT = types.RoundMoney(vat)
	d.TotalTTC = d.TotalHT.Add(d.TotalVAT)
}
