// Package out defines outbound ports of the quotation agent.
package out

import (
	"context"

	"quote_agent/core/domain"
)

// ReplyRequest is an outgoing reply sent into an existing thread.
type ReplyRequest struct {
	To          string
	Subject     string
	Body        string
	ThreadID    string
	InReplyTo   string // RFC 822 Message-ID of the message being answered
	References  string
}

// EmailProvider is the mailbox the agent polls and replies through.
type EmailProvider interface {
	// ListUnread returns up to max unread messages matching the configured query.
	ListUnread(ctx context.Context, max int) ([]*domain.EmailMessage, error)
	// SendReply sends a threaded reply.
	SendReply(ctx context.Context, req *ReplyRequest) error
	// MarkRead removes the unread flag.
	MarkRead(ctx context.Context, messageID string) error
	// ApplyLabel attaches a label, creating it if it does not exist yet.
	ApplyLabel(ctx context.Context, messageID, label string) error
}
