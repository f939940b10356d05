package out

import (
	"context"

	"quote_agent/core/domain"
)

// LLMVerdict is the model's opinion on whether an email is a quotation request.
type LLMVerdict struct {
	IsQuote    bool               `json:"is_quote"`
	Confidence int                `json:"confidence"`
	Type       domain.RequestType `json:"request_type"`
	Reasoning  string             `json:"reasoning,omitempty"`
}

// TripPatch carries the trip fields one email actually stated. A nil
// pointer means the email said nothing about the field; 0 and false are
// real stated values and overwrite on merge.
type TripPatch struct {
	Destination    *string
	Origin         *string
	StartDate      *string
	EndDate        *string
	PreferredMonth *string
	FlexibleDates  *bool
	DurationDays   *int
	NumberOfPeople *int
	Adults         *int
	Children       *int
	ChildAges      []int
	Budget         *domain.Budget
	Accommodation  *string
	Interests      []string
	Dietary        *domain.Dietary
	SpecialNotes   *string
}

// Extraction is the structured trip data pulled from an email.
type Extraction struct {
	Contact  domain.ContactInfo
	Trip     TripPatch
	Language string
}

// LLM is the language-model port used by classification and extraction.
type LLM interface {
	// ClassifyQuote asks the model whether the email is a quotation request.
	ClassifyQuote(ctx context.Context, email *domain.EmailMessage) (*LLMVerdict, error)
	// ExtractTrip pulls structured trip details out of the email.
	ExtractTrip(ctx context.Context, email *domain.EmailMessage) (*Extraction, error)
	// PolishFollowUp rewrites a templated follow-up into a natural email body.
	PolishFollowUp(ctx context.Context, draft string, language string) (string, error)
}
