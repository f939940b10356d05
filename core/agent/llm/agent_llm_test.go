package llm

import (
	"testing"

	"quote_agent/core/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want string
	}{
		{
			name: "plain object",
			resp: `{"is_quote": true}`,
			want: `{"is_quote": true}`,
		},
		{
			name: "fenced json block",
			resp: "```json\n{\"is_quote\": false}\n```",
			want: `{"is_quote": false}`,
		},
		{
			name: "object wrapped in prose",
			resp: `Sure! Here is the result: {"confidence": 80} Let me know.`,
			want: `{"confidence": 80}`,
		},
		{
			name: "nested objects stay balanced",
			resp: `{"trip": {"budget": {"amount": 100}}}`,
			want: `{"trip": {"budget": {"amount": 100}}}`,
		},
		{
			name: "braces inside strings are ignored",
			resp: `{"reasoning": "mentions {price} and \"quotes\""}`,
			want: `{"reasoning": "mentions {price} and \"quotes\""}`,
		},
		{
			name: "no object",
			resp: "I could not classify this email.",
			want: "",
		},
		{
			name: "unbalanced object",
			resp: `{"is_quote": true`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.resp); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.resp, got, tt.want)
			}
		})
	}
}

func TestNormalizeDestination(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"machupichu", "Machu Picchu"},
		{"Machu Pichu", "Machu Picchu"},
		{"CUZCO", "Cusco"},
		{"  valle sagrado  ", "Sacred Valley"},
		{"lago titicaca", "Lake Titicaca"},
		{"selva", "Amazon"},
		{"Arequipa", "Arequipa"},
		{"  Lima ", "Lima"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeDestination(tt.in); got != tt.want {
			t.Errorf("NormalizeDestination(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRequestType(t *testing.T) {
	tests := []struct {
		in   string
		want domain.RequestType
	}{
		{"b2b", domain.RequestTypeB2B},
		{"b2c", domain.RequestTypeB2C},
		{"unknown", domain.RequestTypeUnknown},
		{"", domain.RequestTypeUnknown},
		{"garbage", domain.RequestTypeUnknown},
	}
	for _, tt := range tests {
		if got := parseRequestType(tt.in); got != tt.want {
			t.Errorf("parseRequestType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTruncateBody(t *testing.T) {
	if got := truncateBody("short", 100); got != "short" {
		t.Errorf("short body modified: %q", got)
	}
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateBody(string(long), 100)
	if len(got) != 103 {
		t.Errorf("truncated length = %d, want 103", len(got))
	}
}

func TestEmptyExtraction(t *testing.T) {
	email := &domain.EmailMessage{FromName: "Ana", FromEmail: "ana@gmail.com"}
	got := emptyExtraction(email)

	if got.Contact.Name != "Ana" || got.Contact.Email != "ana@gmail.com" {
		t.Errorf("contact not seeded from headers: %+v", got.Contact)
	}
	if got.Language != "es" {
		t.Errorf("Language = %q, want es default", got.Language)
	}
	if got.Trip.Destination != nil || got.Trip.Adults != nil {
		t.Errorf("trip not empty: %+v", got.Trip)
	}
}
