package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/domain"
	"easyentrepreneur/internal/domain/documents"
)

// DefaultVATRate applies to lines that do not specify one.
var DefaultVATRate = decimal.NewFromInt(20)

// --- Request DTOs ---

// ClientRequest is the billed party.
type ClientRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address,omitempty"`
	Zip     string `json:"zip,omitempty"`
	City    string `json:"city,omitempty"`
	Siret   string `json:"siret,omitempty"`
	VAT     string `json:"vat,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// LineRequest is one billed item. Amounts accept JSON numbers or strings.
type LineRequest struct {
	Description string           `json:"description" binding:"required"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unitPrice"`
	VATRate     *decimal.Decimal `json:"vatRate,omitempty"`
}

// CreateDocumentRequest creates an invoice or a quote.
// The number is never accepted from the client; it is allocated on creation.
// The billed party is either inline (client) or a saved client (clientId);
// when both are sent the saved client wins.
type CreateDocumentRequest struct {
	IssueDate   *time.Time     `json:"issueDate,omitempty"`
	ClientID    *id.ID         `json:"clientId,omitempty"`
	Client      *ClientRequest `json:"client" binding:"required_without=ClientID"`
	Lines       []LineRequest  `json:"lines" binding:"required,min=1,dive"`
	PaymentInfo string         `json:"paymentInfo,omitempty"`
	LegalNote   string         `json:"legalNote,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateDocumentRequest) ToEntity(kind numerator.Kind) *documents.Document {
	doc := &documents.Document{
		Kind:        kind,
		ClientID:    r.ClientID,
		PaymentInfo: r.PaymentInfo,
		LegalNote:   r.LegalNote,
		Lines: lo.Map(r.Lines, func(l LineRequest, _ int) documents.Line {
			return documents.Line{
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				VATRate:     lo.FromPtrOr(l.VATRate, DefaultVATRate),
			}
		}),
	}
	if r.Client != nil {
		doc.Client = documents.Client(*r.Client)
	}
	if r.IssueDate != nil {
		doc.IssueDate = *r.IssueDate
	}
	return doc
}

// --- Response DTOs ---

// LineResponse is a line with its computed amounts.
type LineResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	VATRate     decimal.Decimal `json:"vatRate"`
	Amount      decimal.Decimal `json:"amount"`
}

// DocumentResponse represents an invoice or quote in API responses.
type DocumentResponse struct {
	ID           id.ID          `json:"id"`
	Kind         numerator.Kind `json:"kind"`
	Number       string         `json:"number"`
	IssueDate    string         `json:"issueDate"`
	ClientID     *id.ID         `json:"clientId,omitempty"`
	Client       ClientRequest  `json:"client"`
	Lines        []LineResponse `json:"lines"`
	PaymentInfo  string         `json:"paymentInfo,omitempty"`
	LegalNote    string         `json:"legalNote,omitempty"`
	TotalHT      string         `json:"totalHT"`
	TotalVAT     string         `json:"totalVAT"`
	TotalTTC     string         `json:"totalTTC"`
	DeletionMark bool           `json:"deletionMark"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FromDocument creates response DTO from domain entity.
func FromDocument(doc *documents.Document) DocumentResponse {
	return DocumentResponse{
		ID:          doc.ID,
		Kind:        doc.Kind,
		Number:      doc.Number,
		IssueDate:   doc.IssueDate.Format(time.DateOnly),
		ClientID:    doc.ClientID,
		Client:      ClientRequest(doc.Client),
		PaymentInfo: doc.PaymentInfo,
		LegalNote:   doc.LegalNote,
		Lines: lo.Map(doc.Lines, func(l documents.Line, _ int) LineResponse {
			return LineResponse{
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				VATRate:     l.VATRate,
				Amount:      l.Amount().Round(2),
			}
		}),
		TotalHT:      doc.TotalHT.StringFixed(2),
		TotalVAT:     doc.TotalVAT.StringFixed(2),
		TotalTTC:     doc.TotalTTC.StringFixed(2),
		DeletionMark: doc.DeletionMark,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

// HistoryResponse lists audit entries of one document, newest first.
type HistoryResponse struct {
	Items []domain.AuditEntry `json:"items"`
}
