// Package in defines the inbound ports of the quotation agent.
package in

import (
	"context"

	"quote_agent/core/domain"
)

// EmailResult is the outcome of processing a single inbound email.
type EmailResult struct {
	MessageID string
	Verdict   *domain.ClassificationVerdict
	Quotation *domain.Quotation
	Skipped   bool
	LLMCalls  int
	FollowUp  bool
}

// TriageService processes individual inbound emails end to end.
type TriageService interface {
	ProcessEmail(ctx context.Context, email *domain.EmailMessage) (*EmailResult, error)
}

// BatchService drives full mailbox runs.
type BatchService interface {
	// RunBatch fetches unread mail and processes it with bounded concurrency.
	RunBatch(ctx context.Context) (*domain.BatchReport, error)
	// SendDueFollowUps sends every follow-up reminder whose schedule has arrived.
	SendDueFollowUps(ctx context.Context) (int, error)
}
