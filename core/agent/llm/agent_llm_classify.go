package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"
)

const classifySystemPrompt = `You are a triage assistant for a destination management company (DMC).
Decide whether an email is a travel quotation request and whether it comes
from the trade (another agency or tour operator) or a direct traveler.
Emails arrive mostly in Spanish, sometimes in English.

A quotation request asks for prices, itineraries, packages, or availability
for a specific trip. Newsletters, invoices, automated notifications, job
applications and unrelated commercial offers are NOT quotation requests,
even when they mention destinations.

Respond with this exact JSON format and nothing else:
{
  "is_quote": true|false,
  "confidence": 0-100,
  "request_type": "b2b"|"b2c"|"unknown",
  "reasoning": "one short sentence"
}`

type classifyResponse struct {
	IsQuote     bool   `json:"is_quote"`
	Confidence  int    `json:"confidence"`
	RequestType string `json:"request_type"`
	Reasoning   string `json:"reasoning"`
}

// ClassifyQuote asks the model whether the email is a quotation request.
// An unparseable response degrades to a conservative "not a quote" verdict
// instead of failing the email.
func (c *Client) ClassifyQuote(ctx context.Context, email *domain.EmailMessage) (*out.LLMVerdict, error) {
	userPrompt := fmt.Sprintf("From: %s <%s>\nSubject: %s\n\nBody:\n%s",
		email.FromName, email.FromEmail, email.Subject, truncateBody(email.Body, 2000))

	resp, err := c.CompleteJSON(ctx, classifySystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	raw := extractJSON(resp)
	if raw == "" {
		return fallbackVerdict("no json object in response"), nil
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fallbackVerdict("unparseable response"), nil
	}

	verdict := &out.LLMVerdict{
		IsQuote:    parsed.IsQuote,
		Confidence: clamp(parsed.Confidence, 0, 100),
		Type:       parseRequestType(parsed.RequestType),
		Reasoning:  parsed.Reasoning,
	}
	return verdict, nil
}

func fallbackVerdict(reason string) *out.LLMVerdict {
	return &out.LLMVerdict{
		IsQuote:    false,
		Confidence: 0,
		Type:       domain.RequestTypeUnknown,
		Reasoning:  reason,
	}
}

func parseRequestType(s string) domain.RequestType {
	switch s {
	case "b2b":
		return domain.RequestTypeB2B
	case "b2c":
		return domain.RequestTypeB2C
	default:
		return domain.RequestTypeUnknown
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
