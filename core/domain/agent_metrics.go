package domain

import "time"

// EmailFailure records one email that could not be processed.
type EmailFailure struct {
	EmailID   string    `json:"email_id,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchReport summarizes one processing run.
type BatchReport struct {
	BatchID       string         `json:"batch_id"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
	Fetched       int            `json:"fetched"`
	Processed     int            `json:"processed"`
	Quotes        int            `json:"quotes"`
	NonQuotes     int            `json:"non_quotes"`
	Skipped       int            `json:"skipped"`
	Errors        int            `json:"errors"`
	Retried       int            `json:"retried"`
	LLMCalls      int            `json:"llm_calls"`
	FollowUpsSent int            `json:"followups_sent"`
	Failures      []EmailFailure `json:"failures,omitempty"`
}

// StoreStats aggregates persisted quotation counts for the stats command.
type StoreStats struct {
	Total       int                     `json:"total"`
	ByStatus    map[QuotationStatus]int `json:"by_status"`
	ByType      map[RequestType]int     `json:"by_type"`
	NeedsReview int                     `json:"needs_review"`
}
