// Package domain holds the core types of the quotation agent.
package domain

import "time"

// EmailMessage is a normalized inbound email as fetched from the provider.
type EmailMessage struct {
	ID            string    `json:"id"`
	ThreadID      string    `json:"thread_id"`
	FromName      string    `json:"from_name,omitempty"`
	FromEmail     string    `json:"from_email"`
	To            []string  `json:"to,omitempty"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Snippet       string    `json:"snippet,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
	Labels        []string  `json:"labels,omitempty"`
	RFC822MsgID   string    `json:"rfc822_msg_id,omitempty"` // Message-ID header, for reply threading
	References    string    `json:"references,omitempty"`
	IsRead        bool      `json:"is_read"`
	HasAttachment bool      `json:"has_attachment"`
}

// Text returns subject and body joined, the input most matchers operate on.
func (e *EmailMessage) Text() string {
	if e.Subject == "" {
		return e.Body
	}
	return e.Subject + "\n" + e.Body
}
