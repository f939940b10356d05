package domain

import "time"

// QuotationStatus tracks a request through its lifecycle.
type QuotationStatus string

const (
	// StatusPendingInfo means critical trip fields are still missing.
	StatusPendingInfo QuotationStatus = "pending_info"
	// StatusReady means the request is complete enough to quote.
	StatusReady QuotationStatus = "ready"
	// StatusQuoted means a quote was produced and sent.
	StatusQuoted QuotationStatus = "quoted"
	// StatusClosed means no further action is expected.
	StatusClosed QuotationStatus = "closed"
)

// ContactInfo identifies the requester.
type ContactInfo struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// Budget is the stated budget, if any.
type Budget struct {
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Per      string  `json:"per,omitempty"` // "person" or "total"
}

// Dietary holds food preferences and restrictions.
type Dietary struct {
	Preferences []string `json:"preferences,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// TripDetails is the structured trip request extracted from the email.
type TripDetails struct {
	Destination    string   `json:"destination,omitempty"`
	Origin         string   `json:"origin,omitempty"`
	StartDate      string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        string   `json:"end_date,omitempty"`
	FlexibleDates  bool     `json:"flexible_dates,omitempty"`
	PreferredMonth string   `json:"preferred_month,omitempty"` // YYYY-MM, for flexible dates
	DurationDays   int      `json:"duration_days,omitempty"`
	NumberOfPeople int      `json:"number_of_people,omitempty"` // stated total, kept alongside the breakdown
	Adults         int      `json:"adults,omitempty"`
	Children       int      `json:"children,omitempty"`
	ChildAges      []int    `json:"child_ages,omitempty"`
	Budget         Budget   `json:"budget,omitempty"`
	Accommodation  string   `json:"accommodation,omitempty"`
	Interests      []string `json:"interests,omitempty"`
	Dietary        Dietary  `json:"dietary,omitempty"`
	SpecialNotes   string   `json:"special_notes,omitempty"`
}

// TotalTravelers returns the stated total when one was given, otherwise
// adults plus children.
func (t *TripDetails) TotalTravelers() int {
	if t.NumberOfPeople > 0 {
		return t.NumberOfPeople
	}
	return t.Adults + t.Children
}

// ProcessingEvent is one entry in a quotation's audit trail.
type ProcessingEvent struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// Quotation is a persisted travel quotation request.
type Quotation struct {
	ID                string            `json:"id"` // sequential, SQ-0001 style
	Status            QuotationStatus   `json:"status"`
	Type              RequestType       `json:"request_type"`
	Contact           ContactInfo       `json:"contact"`
	Trip              TripDetails       `json:"trip"`
	Language          string            `json:"language,omitempty"`
	MissingFields     []string          `json:"missing_fields,omitempty"`
	CompletenessScore int               `json:"completeness_score"`
	NeedsReview       bool              `json:"needs_review,omitempty"`
	ReviewReasons     []string          `json:"review_reasons,omitempty"`
	SourceMessageID   string            `json:"source_message_id"`
	SourceRFC822ID    string            `json:"source_rfc822_id,omitempty"` // Message-ID of the latest client email
	SourceReferences  string            `json:"source_references,omitempty"`
	ThreadID          string            `json:"thread_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	History           []ProcessingEvent `json:"history,omitempty"`
}

// AddEvent appends an audit trail entry.
func (q *Quotation) AddEvent(action, detail string) {
	q.History = append(q.History, ProcessingEvent{
		At:     time.Now().UTC(),
		Action: action,
		Detail: detail,
	})
}
