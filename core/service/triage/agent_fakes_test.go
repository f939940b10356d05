package triage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"
	"quote_agent/pkg/apperr"
)

// In-memory fakes for the outbound ports.

type memQuotes struct {
	seq       int
	items     map[string]*domain.Quotation
	processed map[string]bool
}

func newMemQuotes() *memQuotes {
	return &memQuotes{
		items:     make(map[string]*domain.Quotation),
		processed: make(map[string]bool),
	}
}

func (m *memQuotes) Insert(ctx context.Context, q *domain.Quotation) (*domain.Quotation, error) {
	m.seq++
	q.ID = fmt.Sprintf("SQ-%04d", m.seq)
	m.items[q.ID] = q
	return q, nil
}

func (m *memQuotes) Update(ctx context.Context, q *domain.Quotation) error {
	if _, ok := m.items[q.ID]; !ok {
		return apperr.NotFound("quotation")
	}
	m.items[q.ID] = q
	return nil
}

func (m *memQuotes) GetByID(ctx context.Context, id string) (*domain.Quotation, error) {
	q, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("quotation")
	}
	return q, nil
}

func (m *memQuotes) FindBySender(ctx context.Context, email string) (*domain.Quotation, error) {
	var newest *domain.Quotation
	for _, q := range m.items {
		if q.Contact.Email != email {
			continue
		}
		if q.Status != domain.StatusPendingInfo && q.Status != domain.StatusReady {
			continue
		}
		if newest == nil || q.UpdatedAt.After(newest.UpdatedAt) {
			newest = q
		}
	}
	return newest, nil
}

func (m *memQuotes) List(ctx context.Context) ([]*domain.Quotation, error) {
	var all []*domain.Quotation
	for _, q := range m.items {
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (m *memQuotes) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	return m.processed[messageID], nil
}

func (m *memQuotes) MarkProcessed(ctx context.Context, messageID string) error {
	m.processed[messageID] = true
	return nil
}

func (m *memQuotes) Stats(ctx context.Context) (*domain.StoreStats, error) {
	return &domain.StoreStats{Total: len(m.items)}, nil
}

type memFollowUps struct {
	items map[string]*domain.FollowUpRecord
	now   func() time.Time
}

func newMemFollowUps(now func() time.Time) *memFollowUps {
	return &memFollowUps{items: make(map[string]*domain.FollowUpRecord), now: now}
}

func (m *memFollowUps) Upsert(ctx context.Context, f *domain.FollowUpRecord) error {
	m.items[f.ID] = f
	return nil
}

func (m *memFollowUps) GetByQuotation(ctx context.Context, quotationID string) (*domain.FollowUpRecord, error) {
	for _, f := range m.items {
		if f.QuotationID == quotationID {
			return f, nil
		}
	}
	return nil, apperr.NotFound("follow-up")
}

func (m *memFollowUps) ListDue(ctx context.Context) ([]*domain.FollowUpRecord, error) {
	var due []*domain.FollowUpRecord
	for _, f := range m.items {
		if f.Status == domain.FollowUpPending && f.Due(m.now()) {
			due = append(due, f)
		}
	}
	return due, nil
}

func (m *memFollowUps) List(ctx context.Context) ([]*domain.FollowUpRecord, error) {
	var all []*domain.FollowUpRecord
	for _, f := range m.items {
		all = append(all, f)
	}
	return all, nil
}

type fakeProvider struct {
	replies []*out.ReplyRequest
	read    []string
	labels  map[string][]string
	sendErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{labels: make(map[string][]string)}
}

func (p *fakeProvider) ListUnread(ctx context.Context, max int) ([]*domain.EmailMessage, error) {
	return nil, nil
}

func (p *fakeProvider) SendReply(ctx context.Context, req *out.ReplyRequest) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.replies = append(p.replies, req)
	return nil
}

func (p *fakeProvider) MarkRead(ctx context.Context, messageID string) error {
	p.read = append(p.read, messageID)
	return nil
}

func (p *fakeProvider) ApplyLabel(ctx context.Context, messageID, label string) error {
	p.labels[messageID] = append(p.labels[messageID], label)
	return nil
}

type scriptedLLM struct {
	verdict    *out.LLMVerdict
	extraction *out.Extraction
	classifyN  int
	extractN   int
}

func (s *scriptedLLM) ClassifyQuote(ctx context.Context, email *domain.EmailMessage) (*out.LLMVerdict, error) {
	s.classifyN++
	if s.verdict == nil {
		return &out.LLMVerdict{Type: domain.RequestTypeUnknown}, nil
	}
	return s.verdict, nil
}

func (s *scriptedLLM) ExtractTrip(ctx context.Context, email *domain.EmailMessage) (*out.Extraction, error) {
	s.extractN++
	if s.extraction == nil {
		return &out.Extraction{
			Contact:  domain.ContactInfo{Name: email.FromName, Email: email.FromEmail},
			Language: "es",
		}, nil
	}
	return s.extraction, nil
}

func (s *scriptedLLM) PolishFollowUp(ctx context.Context, draft, language string) (string, error) {
	return draft, nil
}

var (
	_ out.QuotationRepository = (*memQuotes)(nil)
	_ out.FollowUpRepository  = (*memFollowUps)(nil)
	_ out.EmailProvider       = (*fakeProvider)(nil)
	_ out.LLM                 = (*scriptedLLM)(nil)
)

// Pointer helpers for building trip patches.

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }
