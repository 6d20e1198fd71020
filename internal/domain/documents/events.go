package documents

import (
	"time"

	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/domain"
)

const (
	AggregateType = "BillingDocument"

	EventCreated = "document.created"
	EventDeleted = "document.deleted"
)

// EventPayload is the body of document events.
type EventPayload struct {
	ID        id.ID     `json:"id"`
	TenantID  string    `json:"tenantId"`
	Kind      string    `json:"kind"`
	Number    string    `json:"number"`
	TotalTTC  string    `json:"totalTTC"`
	CreatedAt time.Time `json:"createdAt"`
}

func newEvent(eventType string, doc *Document) domain.Event {
	return domain.Event{
		AggregateType: AggregateType,
		AggregateID:   doc.ID,
		EventType:     eventType,
		Payload: EventPayload{
			ID:        doc.ID,
			TenantID:  doc.TenantID,
			Kind:      string(doc.Kind),
			Number:    doc.Number,
			TotalTTC:  doc.TotalTTC.StringFixed(2),
			CreatedAt: doc.CreatedAt,
		},
	}
}
