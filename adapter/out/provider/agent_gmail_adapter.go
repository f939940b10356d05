// Package provider implements outbound email provider ports.
package provider

import (
	"context"
	"errors"
	"time"

	"quote_agent/adapter/out/provider/gmail"
	"quote_agent/core/domain"
	"quote_agent/core/port/out"
	"quote_agent/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	gmailapi "google.golang.org/api/gmail/v1"
)

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailConfig holds Gmail OAuth and query configuration.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
	Query        string
}

// GmailAdapter implements out.EmailProvider for Gmail behind a circuit
// breaker, so a flapping API cannot stall a whole batch.
type GmailAdapter struct {
	client *gmail.Client
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
}

// NewGmailAdapter authenticates against Gmail and wires the breaker.
func NewGmailAdapter(ctx context.Context, cfg *GmailConfig, log *logger.Logger) (*GmailAdapter, error) {
	if log == nil {
		log = logger.Default()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmailapi.GmailReadonlyScope,
			gmailapi.GmailSendScope,
			gmailapi.GmailModifyScope,
			gmailapi.GmailLabelsScope,
		},
		Endpoint: google.Endpoint,
	}

	client, err := gmail.NewClient(ctx, oauthCfg, cfg.RefreshToken, cfg.Query)
	if err != nil {
		return nil, err
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("breaker", name).
				WithField("from", from.String()).
				WithField("to", to.String()).
				Warn("circuit breaker state changed")
		},
		// Client-side errors are the caller's fault, not the API's; they
		// must not accumulate toward tripping.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var nce *nonCircuitError
			return errors.As(err, &nce)
		},
	}

	return &GmailAdapter{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    log,
	}, nil
}

// Email returns the authenticated mailbox address.
func (a *GmailAdapter) Email() string {
	return a.client.Email()
}

// ListUnread fetches unread messages matching the configured query.
func (a *GmailAdapter) ListUnread(ctx context.Context, max int) ([]*domain.EmailMessage, error) {
	var messages []*domain.EmailMessage
	err := a.execute(func() error {
		var err error
		messages, err = a.client.ListUnread(ctx, max)
		return err
	})
	return messages, err
}

// SendReply sends a reply into the original thread.
func (a *GmailAdapter) SendReply(ctx context.Context, req *out.ReplyRequest) error {
	return a.execute(func() error {
		return a.client.SendReply(ctx, req)
	})
}

// MarkRead marks a message as read.
func (a *GmailAdapter) MarkRead(ctx context.Context, messageID string) error {
	return a.execute(func() error {
		return a.client.MarkRead(ctx, messageID)
	})
}

// ApplyLabel applies a user label, creating it when missing.
func (a *GmailAdapter) ApplyLabel(ctx context.Context, messageID, label string) error {
	return a.execute(func() error {
		return a.client.ApplyLabel(ctx, messageID, label)
	})
}

// nonCircuitError marks client-side failures that must not trip the breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string { return e.err.Error() }
func (e *nonCircuitError) Unwrap() error { return e.err }

// execute runs fn through the breaker. Server-side failures (5xx, 429)
// count toward tripping it; client errors pass through without counting.
func (a *GmailAdapter) execute(fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}
	return err
}

// Ensure GmailAdapter implements out.EmailProvider
var _ out.EmailProvider = (*GmailAdapter)(nil)
