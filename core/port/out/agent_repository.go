package out

import (
	"context"

	"quote_agent/core/domain"
)

// QuotationRepository persists quotation records.
type QuotationRepository interface {
	// Insert stores a new quotation and returns it with its assigned ID.
	Insert(ctx context.Context, q *domain.Quotation) (*domain.Quotation, error)
	// Update rewrites an existing quotation.
	Update(ctx context.Context, q *domain.Quotation) error
	// GetByID returns a quotation or apperr.NotFound.
	GetByID(ctx context.Context, id string) (*domain.Quotation, error)
	// FindBySender returns the newest open quotation for a sender, nil if none.
	FindBySender(ctx context.Context, email string) (*domain.Quotation, error)
	// List returns all quotations.
	List(ctx context.Context) ([]*domain.Quotation, error)
	// IsProcessed reports whether a provider message ID was already handled.
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	// MarkProcessed records a provider message ID as handled.
	MarkProcessed(ctx context.Context, messageID string) error
	// Stats aggregates store counts.
	Stats(ctx context.Context) (*domain.StoreStats, error)
}

// FollowUpRepository persists follow-up reminder records.
type FollowUpRepository interface {
	Upsert(ctx context.Context, f *domain.FollowUpRecord) error
	GetByQuotation(ctx context.Context, quotationID string) (*domain.FollowUpRecord, error)
	ListDue(ctx context.Context) ([]*domain.FollowUpRecord, error)
	List(ctx context.Context) ([]*domain.FollowUpRecord, error)
}
