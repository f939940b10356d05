package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"
)

const extractSystemPrompt = `You extract structured trip data from travel quotation emails
for a destination management company. Emails are mostly Spanish, sometimes English.

Rules:
- Only report what the email actually states. Never invent values.
- Include a field only when the email states it; omit unstated fields
  entirely. Explicit zeros and false are valid stated values and must be
  included ("sin niños" -> "children": 0).
- Dates in YYYY-MM-DD. If the email only gives a rough month or says the
  dates are open, set "flexible_dates": true and "preferred_month" to
  YYYY-MM. Never turn a loose month into exact start or end dates.
- "number_of_people" is the stated party size ("somos 4" -> 4). Fill
  "adults"/"children" only when the email itself splits the group.
- budget.per is "person" or "total". Omit budget fields not stated.
- language is the ISO 639-1 code of the email language (es, en, ...).

Respond with one JSON object of this shape and nothing else:
{
  "contact": {"name": "", "email": "", "phone": "", "company": ""},
  "trip": {
    "destination": "", "origin": "",
    "start_date": "", "end_date": "",
    "flexible_dates": false, "preferred_month": "",
    "duration_days": 0,
    "number_of_people": 0, "adults": 0, "children": 0, "child_ages": [],
    "budget": {"amount": 0, "currency": "", "per": ""},
    "accommodation": "",
    "interests": [],
    "dietary": {"preferences": [], "notes": ""},
    "special_notes": ""
  },
  "language": ""
}`

// extractResponse is the wire shape of the model's answer. Counts and flags
// decode through pointers so an omitted key is distinguishable from a
// stated zero.
type extractResponse struct {
	Contact struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Company string `json:"company"`
	} `json:"contact"`
	Trip struct {
		Destination    string `json:"destination"`
		Origin         string `json:"origin"`
		StartDate      string `json:"start_date"`
		EndDate        string `json:"end_date"`
		FlexibleDates  *bool  `json:"flexible_dates"`
		PreferredMonth string `json:"preferred_month"`
		DurationDays   *int   `json:"duration_days"`
		NumberOfPeople *int   `json:"number_of_people"`
		Adults         *int   `json:"adults"`
		Children       *int   `json:"children"`
		ChildAges      []int  `json:"child_ages"`
		Budget         *struct {
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
			Per      string  `json:"per"`
		} `json:"budget"`
		Accommodation string   `json:"accommodation"`
		Interests     []string `json:"interests"`
		Dietary       *struct {
			Preferences []string `json:"preferences"`
			Notes       string   `json:"notes"`
		} `json:"dietary"`
		SpecialNotes string `json:"special_notes"`
	} `json:"trip"`
	Language string `json:"language"`
}

// ExtractTrip pulls structured trip details out of an email. A response the
// model mangles beyond parsing yields an empty extraction seeded with the
// sender's contact data, never an aborted pipeline.
func (c *Client) ExtractTrip(ctx context.Context, email *domain.EmailMessage) (*out.Extraction, error) {
	userPrompt := fmt.Sprintf("From: %s <%s>\nSubject: %s\n\nBody:\n%s",
		email.FromName, email.FromEmail, email.Subject, truncateBody(email.Body, 4000))

	resp, err := c.CompleteJSON(ctx, extractSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	extraction := emptyExtraction(email)

	raw := extractJSON(resp)
	if raw == "" {
		return extraction, nil
	}

	var parsed extractResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return extraction, nil
	}

	extraction.Contact = domain.ContactInfo{
		Name:    firstNonEmpty(parsed.Contact.Name, email.FromName),
		Email:   firstNonEmpty(parsed.Contact.Email, email.FromEmail),
		Phone:   parsed.Contact.Phone,
		Company: parsed.Contact.Company,
	}
	extraction.Trip = out.TripPatch{
		Destination:    optString(NormalizeDestination(parsed.Trip.Destination)),
		Origin:         optString(parsed.Trip.Origin),
		StartDate:      optString(parsed.Trip.StartDate),
		EndDate:        optString(parsed.Trip.EndDate),
		PreferredMonth: optString(parsed.Trip.PreferredMonth),
		FlexibleDates:  parsed.Trip.FlexibleDates,
		DurationDays:   parsed.Trip.DurationDays,
		NumberOfPeople: parsed.Trip.NumberOfPeople,
		Adults:         parsed.Trip.Adults,
		Children:       parsed.Trip.Children,
		ChildAges:      parsed.Trip.ChildAges,
		Accommodation:  optString(parsed.Trip.Accommodation),
		Interests:      parsed.Trip.Interests,
		SpecialNotes:   optString(parsed.Trip.SpecialNotes),
	}
	if b := parsed.Trip.Budget; b != nil && (b.Amount > 0 || b.Currency != "") {
		extraction.Trip.Budget = &domain.Budget{
			Amount:   b.Amount,
			Currency: b.Currency,
			Per:      b.Per,
		}
	}
	if d := parsed.Trip.Dietary; d != nil && (len(d.Preferences) > 0 || d.Notes != "") {
		extraction.Trip.Dietary = &domain.Dietary{
			Preferences: d.Preferences,
			Notes:       d.Notes,
		}
	}
	if parsed.Language != "" {
		extraction.Language = parsed.Language
	}

	return extraction, nil
}

func emptyExtraction(email *domain.EmailMessage) *out.Extraction {
	return &out.Extraction{
		Contact: domain.ContactInfo{
			Name:  email.FromName,
			Email: email.FromEmail,
		},
		Language: "es",
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// optString treats an empty string as "not stated".
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// destinationAliases maps frequent misspellings and shorthand to canonical
// destination names. Matching is case-insensitive on the trimmed input.
var destinationAliases = map[string]string{
	"machupichu":      "Machu Picchu",
	"machu pichu":     "Machu Picchu",
	"machupicchu":     "Machu Picchu",
	"cuzco":           "Cusco",
	"qosqo":           "Cusco",
	"valle sagrado":   "Sacred Valley",
	"camino inca":     "Inca Trail",
	"camino del inca": "Inca Trail",
	"titicaca":        "Lake Titicaca",
	"lago titicaca":   "Lake Titicaca",
	"galapagos":       "Galápagos",
	"islas galapagos": "Galápagos",
	"amazonas":        "Amazon",
	"selva":           "Amazon",
}

// NormalizeDestination canonicalizes a destination string via the alias map.
// Unknown destinations pass through with whitespace trimmed.
func NormalizeDestination(dest string) string {
	trimmed := strings.TrimSpace(dest)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := destinationAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}
