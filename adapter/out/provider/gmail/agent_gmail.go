// Package gmail wraps the Gmail API for the quotation agent.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"sync"
	"time"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client is a thin wrapper over the Gmail service for the operations the
// triage pipeline needs: list unread, reply in thread, mark read, label.
type Client struct {
	service *gmailapi.Service
	email   string
	query   string

	// Label names are resolved to IDs lazily and cached; missing user
	// labels are created on first use. Pool workers label concurrently,
	// so the cache is mutex-guarded.
	labelMu  sync.Mutex
	labelIDs map[string]string
}

// NewClient builds an authenticated client from an offline refresh token.
func NewClient(ctx context.Context, config *oauth2.Config, refreshToken, query string) (*Client, error) {
	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	service, err := gmailapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	profile, err := service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	return &Client{
		service:  service,
		email:    profile.EmailAddress,
		query:    query,
		labelIDs: make(map[string]string),
	}, nil
}

// Email returns the authenticated mailbox address.
func (c *Client) Email() string {
	return c.email
}

// ListUnread fetches up to max unread messages matching the configured query.
// Message bodies are fetched in parallel with bounded concurrency to avoid
// rate limiting.
func (c *Client) ListUnread(ctx context.Context, max int) ([]*domain.EmailMessage, error) {
	req := c.service.Users.Messages.List("me").Q(c.query)
	if max > 0 {
		req = req.MaxResults(int64(max))
	}

	resp, err := req.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(resp.Messages) == 0 {
		return []*domain.EmailMessage{}, nil
	}

	const maxConcurrency = 5
	type result struct {
		index int
		msg   *domain.EmailMessage
		err   error
	}

	results := make(chan result, len(resp.Messages))
	semaphore := make(chan struct{}, maxConcurrency)

	for i, m := range resp.Messages {
		go func(idx int, msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			msg, err := c.GetMessage(ctx, msgID)
			results <- result{index: idx, msg: msg, err: err}
		}(i, m.Id)
	}

	messages := make([]*domain.EmailMessage, len(resp.Messages))
	var firstErr error
	for range resp.Messages {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		messages[r.index] = r.msg
	}

	final := make([]*domain.EmailMessage, 0, len(messages))
	for _, msg := range messages {
		if msg != nil {
			final = append(final, msg)
		}
	}
	if len(final) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return final, nil
}

// GetMessage fetches a single message in full.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*domain.EmailMessage, error) {
	msg, err := c.service.Users.Messages.Get("me", messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return parseMessage(msg), nil
}

// SendReply sends a plain-text reply into an existing thread.
func (c *Client) SendReply(ctx context.Context, req *out.ReplyRequest) error {
	raw := buildRawReply(c.email, req)

	msg := &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}
	if req.ThreadID != "" {
		msg.ThreadId = req.ThreadID
	}

	if _, err := c.service.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// MarkRead removes the UNREAD label.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.service.Users.Messages.Modify("me", messageID, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

// ApplyLabel adds a user label by name, creating it when missing.
func (c *Client) ApplyLabel(ctx context.Context, messageID, label string) error {
	id, err := c.ensureLabel(ctx, label)
	if err != nil {
		return err
	}
	_, err = c.service.Users.Messages.Modify("me", messageID, &gmailapi.ModifyMessageRequest{
		AddLabelIds: []string{id},
	}).Context(ctx).Do()
	return err
}

// ensureLabel resolves a label name to its ID, creating the label if needed.
func (c *Client) ensureLabel(ctx context.Context, name string) (string, error) {
	if id, ok := c.cachedLabel(name); ok {
		return id, nil
	}

	resp, err := c.service.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		c.storeLabel(l.Name, l.Id)
	}
	if id, ok := c.cachedLabel(name); ok {
		return id, nil
	}

	created, err := c.service.Users.Labels.Create("me", &gmailapi.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", name, err)
	}
	c.storeLabel(name, created.Id)
	return created.Id, nil
}

func (c *Client) cachedLabel(name string) (string, bool) {
	c.labelMu.Lock()
	defer c.labelMu.Unlock()
	id, ok := c.labelIDs[name]
	return id, ok
}

func (c *Client) storeLabel(name, id string) {
	c.labelMu.Lock()
	defer c.labelMu.Unlock()
	c.labelIDs[name] = id
}

// Helper functions

func parseMessage(msg *gmailapi.Message) *domain.EmailMessage {
	em := &domain.EmailMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Labels:   msg.LabelIds,
		IsRead:   !containsLabel(msg.LabelIds, "UNREAD"),
	}
	em.ReceivedAt = time.Unix(msg.InternalDate/1000, 0)

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				em.FromName, em.FromEmail = parseFrom(header.Value)
			case "To":
				em.To = splitAddressList(header.Value)
			case "Subject":
				em.Subject = decodeHeader(header.Value)
			case "Message-ID", "Message-Id":
				em.RFC822MsgID = header.Value
			case "References":
				em.References = header.Value
			}
		}
		em.Body = parseTextBody(msg.Payload)
		em.HasAttachment = hasAttachment(msg.Payload)
	}

	if em.Body == "" {
		em.Body = msg.Snippet
	}
	return em
}

func splitAddressList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func parseFrom(value string) (name, email string) {
	addr, err := mail.ParseAddress(decodeHeader(value))
	if err != nil {
		return "", strings.TrimSpace(value)
	}
	return addr.Name, addr.Address
}

func decodeHeader(value string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// parseTextBody walks the MIME tree and returns the first text/plain part,
// falling back to a crudely stripped text/html part.
func parseTextBody(payload *gmailapi.MessagePart) string {
	text, html := collectBody(payload)
	if text != "" {
		return text
	}
	return stripTags(html)
}

func collectBody(payload *gmailapi.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		switch payload.MimeType {
		case "text/plain":
			text = string(data)
		case "text/html":
			html = string(data)
		}
	}

	for _, part := range payload.Parts {
		t, h := collectBody(part)
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
	}
	return text, html
}

func stripTags(html string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			sb.WriteRune(' ')
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

func hasAttachment(payload *gmailapi.MessagePart) bool {
	if payload == nil {
		return false
	}
	if payload.Filename != "" && payload.Body != nil && payload.Body.AttachmentId != "" {
		return true
	}
	for _, part := range payload.Parts {
		if hasAttachment(part) {
			return true
		}
	}
	return false
}

// buildRawReply assembles an RFC 822 reply with threading headers. Non-ASCII
// subjects are Q-encoded.
func buildRawReply(from string, req *out.ReplyRequest) string {
	var sb strings.Builder

	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + req.To + "\r\n")
	sb.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", req.Subject) + "\r\n")
	if req.InReplyTo != "" {
		sb.WriteString("In-Reply-To: " + req.InReplyTo + "\r\n")
	}
	if refs := joinReferences(req.References, req.InReplyTo); refs != "" {
		sb.WriteString("References: " + refs + "\r\n")
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(req.Body)

	return sb.String()
}

func joinReferences(references, inReplyTo string) string {
	if inReplyTo == "" {
		return references
	}
	if references == "" {
		return inReplyTo
	}
	if strings.Contains(references, inReplyTo) {
		return references
	}
	return references + " " + inReplyTo
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
