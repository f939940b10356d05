package triage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"
	"quote_agent/pkg/apperr"
	"quote_agent/pkg/logger"
)

// =============================================================================
// Follow-Up Manager
// =============================================================================

// FollowUpConfig controls the reminder schedule.
type FollowUpConfig struct {
	// MaxSends is the total number of emails per quotation, the initial
	// information request included.
	MaxSends int
	// FirstDelay is the wait after the initial request before reminding.
	FirstDelay time.Duration
	// SecondDelay is the wait after the reminder before giving up.
	SecondDelay time.Duration
	// PolishWithLLM routes template output through the model for phrasing.
	PolishWithLLM bool
}

// DefaultFollowUpConfig mirrors the production schedule: one reminder three
// days after the initial ask, abandonment a week after the reminder.
func DefaultFollowUpConfig() FollowUpConfig {
	return FollowUpConfig{
		MaxSends:    2,
		FirstDelay:  72 * time.Hour,
		SecondDelay: 168 * time.Hour,
	}
}

// FollowUpManager owns the missing-info reminder loop.
type FollowUpManager struct {
	repo     out.FollowUpRepository
	quotes   out.QuotationRepository
	provider out.EmailProvider
	llm      out.LLM
	agency   AgencyIdentity
	cfg      FollowUpConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewFollowUpManager creates the manager. llm may be nil when polishing is off.
func NewFollowUpManager(repo out.FollowUpRepository, quotes out.QuotationRepository, provider out.EmailProvider, llm out.LLM, agency AgencyIdentity, cfg FollowUpConfig, log *logger.Logger) *FollowUpManager {
	if log == nil {
		log = logger.Default()
	}
	if cfg.MaxSends == 0 {
		cfg = DefaultFollowUpConfig()
	}
	return &FollowUpManager{
		repo:     repo,
		quotes:   quotes,
		provider: provider,
		llm:      llm,
		agency:   agency,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// RequestMissingInfo sends the initial information request for an incomplete
// quotation and opens its follow-up record. Calling it again for the same
// quotation refreshes the missing-field list without re-sending.
func (m *FollowUpManager) RequestMissingInfo(ctx context.Context, q *domain.Quotation) error {
	existing, err := m.repo.GetByQuotation(ctx, q.ID)
	if err != nil && !isNotFound(err) {
		return err
	}

	critical := CriticalMissing(q.MissingFields)

	if existing != nil {
		if existing.Status != domain.FollowUpPending {
			return nil
		}
		existing.MissingFields = q.MissingFields
		existing.RFC822MsgID = q.SourceRFC822ID
		existing.References = q.SourceReferences
		existing.UpdatedAt = m.now()
		return m.repo.Upsert(ctx, existing)
	}

	// Nothing critical missing means nothing to ask for.
	if len(critical) == 0 {
		return nil
	}

	subject, body := RenderMissingInfoEmail(q, m.agency)
	body = m.maybePolish(ctx, body, q.Language)

	if err := m.provider.SendReply(ctx, &out.ReplyRequest{
		To:         q.Contact.Email,
		Subject:    subject,
		Body:       body,
		ThreadID:   q.ThreadID,
		InReplyTo:  q.SourceRFC822ID,
		References: q.SourceReferences,
	}); err != nil {
		return apperr.ProviderError("send missing-info request", err)
	}

	now := m.now()
	record := &domain.FollowUpRecord{
		ID:            uuid.New().String(),
		QuotationID:   q.ID,
		Email:         q.Contact.Email,
		ThreadID:      q.ThreadID,
		RFC822MsgID:   q.SourceRFC822ID,
		References:    q.SourceReferences,
		MissingFields: q.MissingFields,
		SentCount:     1,
		LastSentAt:    now,
		NextSendAt:    now.Add(m.cfg.FirstDelay),
		Status:        domain.FollowUpPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m.log.WithField("quotation_id", q.ID).Info("missing-info request sent")
	return m.repo.Upsert(ctx, record)
}

// SendDue walks pending follow-ups and sends every reminder whose schedule
// has arrived. Records past their send budget are abandoned.
func (m *FollowUpManager) SendDue(ctx context.Context) (int, error) {
	due, err := m.repo.ListDue(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, f := range due {
		if f.SentCount >= m.cfg.MaxSends {
			if err := m.abandon(ctx, f); err != nil {
				m.log.WithField("quotation_id", f.QuotationID).WithError(err).Error("failed to abandon follow-up")
			}
			continue
		}

		contactName := ""
		if q, err := m.quotes.GetByID(ctx, f.QuotationID); err == nil {
			contactName = q.Contact.Name
		}

		subject, body := RenderReminderEmail(f, contactName, m.agency)
		body = m.maybePolish(ctx, body, "")

		if err := m.provider.SendReply(ctx, &out.ReplyRequest{
			To:         f.Email,
			Subject:    subject,
			Body:       body,
			ThreadID:   f.ThreadID,
			InReplyTo:  f.RFC822MsgID,
			References: f.References,
		}); err != nil {
			m.log.WithField("quotation_id", f.QuotationID).WithError(err).Error("failed to send reminder")
			continue
		}

		now := m.now()
		f.SentCount++
		f.LastSentAt = now
		f.NextSendAt = now.Add(m.cfg.SecondDelay)
		f.UpdatedAt = now
		if err := m.repo.Upsert(ctx, f); err != nil {
			return sent, err
		}
		sent++
	}

	return sent, nil
}

// MarkResponded closes the pending loop when the requester writes back.
func (m *FollowUpManager) MarkResponded(ctx context.Context, quotationID string, completed bool) error {
	f, err := m.repo.GetByQuotation(ctx, quotationID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if f.Status != domain.FollowUpPending {
		return nil
	}

	f.Status = domain.FollowUpResponded
	if completed {
		f.Status = domain.FollowUpCompleted
	}
	f.UpdatedAt = m.now()
	return m.repo.Upsert(ctx, f)
}

func (m *FollowUpManager) abandon(ctx context.Context, f *domain.FollowUpRecord) error {
	f.Status = domain.FollowUpAbandoned
	f.UpdatedAt = m.now()
	if err := m.repo.Upsert(ctx, f); err != nil {
		return err
	}

	if q, err := m.quotes.GetByID(ctx, f.QuotationID); err == nil {
		q.Status = domain.StatusClosed
		q.AddEvent("abandoned", "follow-ups exhausted without response")
		q.UpdatedAt = m.now()
		if err := m.quotes.Update(ctx, q); err != nil {
			return err
		}
	}

	m.log.WithField("quotation_id", f.QuotationID).Info("follow-up abandoned after max reminders")
	return nil
}

func (m *FollowUpManager) maybePolish(ctx context.Context, body, language string) string {
	if !m.cfg.PolishWithLLM || m.llm == nil {
		return body
	}
	if language == "" {
		language = "es"
	}
	polished, err := m.llm.PolishFollowUp(ctx, body, language)
	if err != nil || polished == "" {
		return body
	}
	return polished
}

func isNotFound(err error) bool {
	return err != nil && apperr.CodeOf(err) == apperr.CodeNotFound
}
