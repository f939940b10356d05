package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quote_agent/core/domain"
	"quote_agent/pkg/logger"
)

func newTestManager(t *testing.T) (*FollowUpManager, *memQuotes, *memFollowUps, *fakeProvider, *time.Time) {
	t.Helper()

	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	quotes := newMemQuotes()
	followUps := newMemFollowUps(now)
	provider := newFakeProvider()

	m := NewFollowUpManager(followUps, quotes, provider, nil, testAgency, DefaultFollowUpConfig(), logger.Default())
	m.now = now

	return m, quotes, followUps, provider, &clock
}

func pendingQuotation(t *testing.T, quotes *memQuotes) *domain.Quotation {
	t.Helper()

	q := &domain.Quotation{
		Contact:          domain.ContactInfo{Name: "Ana García", Email: "ana@gmail.com"},
		Trip:             domain.TripDetails{Destination: "Cusco"},
		ThreadID:         "thread-1",
		SourceRFC822ID:   "<req-1@mail.gmail.com>",
		SourceReferences: "<hello@mail.gmail.com>",
		Status:           domain.StatusPendingInfo,
		MissingFields:    []string{FieldStartDate, FieldTravelers, FieldBudget},
	}
	q, err := quotes.Insert(context.Background(), q)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return q
}

func TestRequestMissingInfo(t *testing.T) {
	m, quotes, followUps, provider, clock := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)

	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("RequestMissingInfo: %v", err)
	}

	if len(provider.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(provider.replies))
	}
	reply := provider.replies[0]
	if reply.To != "ana@gmail.com" || reply.ThreadID != "thread-1" {
		t.Errorf("reply addressed wrong: %+v", reply)
	}
	if !strings.Contains(reply.Subject, q.ID) {
		t.Errorf("subject %q missing quotation ID", reply.Subject)
	}
	if reply.InReplyTo != q.SourceRFC822ID {
		t.Errorf("In-Reply-To = %q, want %q", reply.InReplyTo, q.SourceRFC822ID)
	}
	if reply.References != q.SourceReferences {
		t.Errorf("References = %q, want %q", reply.References, q.SourceReferences)
	}

	f, err := followUps.GetByQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByQuotation: %v", err)
	}
	if f.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1 (initial ask counts)", f.SentCount)
	}
	if f.Status != domain.FollowUpPending {
		t.Errorf("Status = %s, want pending", f.Status)
	}
	if want := clock.Add(72 * time.Hour); !f.NextSendAt.Equal(want) {
		t.Errorf("NextSendAt = %v, want %v", f.NextSendAt, want)
	}
}

func TestRequestMissingInfoRefreshesWithoutResend(t *testing.T) {
	m, quotes, followUps, provider, _ := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)

	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("first call: %v", err)
	}

	q.MissingFields = []string{FieldTravelers}
	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if len(provider.replies) != 1 {
		t.Fatalf("replies = %d, want 1 (no re-send on refresh)", len(provider.replies))
	}
	f, err := followUps.GetByQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByQuotation: %v", err)
	}
	if len(f.MissingFields) != 1 || f.MissingFields[0] != FieldTravelers {
		t.Errorf("MissingFields not refreshed: %v", f.MissingFields)
	}
	if f.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", f.SentCount)
	}
}

func TestRequestMissingInfoNothingCritical(t *testing.T) {
	m, quotes, followUps, provider, _ := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)
	q.MissingFields = []string{FieldBudget, FieldInterests}

	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("RequestMissingInfo: %v", err)
	}
	if len(provider.replies) != 0 {
		t.Errorf("replies = %d, want 0 for non-critical gaps", len(provider.replies))
	}
	if _, err := followUps.GetByQuotation(ctx, q.ID); err == nil {
		t.Error("follow-up record created for non-critical gaps")
	}
}

func TestRequestMissingInfoSendFailure(t *testing.T) {
	m, quotes, followUps, provider, _ := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)
	provider.sendErr = errors.New("smtp down")

	if err := m.RequestMissingInfo(ctx, q); err == nil {
		t.Fatal("expected error when the provider fails")
	}
	if _, err := followUps.GetByQuotation(ctx, q.ID); err == nil {
		t.Error("follow-up record persisted despite failed send")
	}
}

func TestSendDueReminder(t *testing.T) {
	m, quotes, followUps, provider, clock := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)

	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("RequestMissingInfo: %v", err)
	}

	// Not due yet.
	sent, err := m.SendDue(ctx)
	if err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d before schedule, want 0", sent)
	}

	*clock = clock.Add(73 * time.Hour)
	sent, err = m.SendDue(ctx)
	if err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(provider.replies) != 2 {
		t.Fatalf("replies = %d, want 2 (request + reminder)", len(provider.replies))
	}
	if !strings.Contains(provider.replies[1].Body, "nuevamente") {
		t.Errorf("second email is not a reminder:\n%s", provider.replies[1].Body)
	}
	// Reminders stay in the client's conversation too.
	if provider.replies[1].InReplyTo != q.SourceRFC822ID {
		t.Errorf("reminder In-Reply-To = %q, want %q", provider.replies[1].InReplyTo, q.SourceRFC822ID)
	}

	f, err := followUps.GetByQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByQuotation: %v", err)
	}
	if f.SentCount != 2 {
		t.Errorf("SentCount = %d, want 2", f.SentCount)
	}
	if want := clock.Add(168 * time.Hour); !f.NextSendAt.Equal(want) {
		t.Errorf("NextSendAt = %v, want %v", f.NextSendAt, want)
	}
}

func TestSendDueAbandonsExhausted(t *testing.T) {
	m, quotes, followUps, provider, clock := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)

	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("RequestMissingInfo: %v", err)
	}
	*clock = clock.Add(73 * time.Hour)
	if _, err := m.SendDue(ctx); err != nil {
		t.Fatalf("reminder SendDue: %v", err)
	}

	// Past the second delay the budget is spent.
	*clock = clock.Add(169 * time.Hour)
	sent, err := m.SendDue(ctx)
	if err != nil {
		t.Fatalf("final SendDue: %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 on abandonment", sent)
	}
	if len(provider.replies) != 2 {
		t.Errorf("replies = %d, want 2 (no third email)", len(provider.replies))
	}

	f, err := followUps.GetByQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByQuotation: %v", err)
	}
	if f.Status != domain.FollowUpAbandoned {
		t.Errorf("follow-up status = %s, want abandoned", f.Status)
	}

	got, err := quotes.GetByID(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.StatusClosed {
		t.Errorf("quotation status = %s, want closed", got.Status)
	}
	found := false
	for _, ev := range got.History {
		if ev.Action == "abandoned" {
			found = true
		}
	}
	if !found {
		t.Error("quotation missing abandoned event")
	}
}

func TestMarkResponded(t *testing.T) {
	m, quotes, followUps, _, _ := newTestManager(t)
	ctx := context.Background()
	q := pendingQuotation(t, quotes)

	if err := m.RequestMissingInfo(ctx, q); err != nil {
		t.Fatalf("RequestMissingInfo: %v", err)
	}

	if err := m.MarkResponded(ctx, q.ID, false); err != nil {
		t.Fatalf("MarkResponded: %v", err)
	}
	f, err := followUps.GetByQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByQuotation: %v", err)
	}
	if f.Status != domain.FollowUpResponded {
		t.Errorf("status = %s, want responded", f.Status)
	}

	// Responded records never re-enter the loop.
	if err := m.MarkResponded(ctx, q.ID, true); err != nil {
		t.Fatalf("second MarkResponded: %v", err)
	}
	f, _ = followUps.GetByQuotation(ctx, q.ID)
	if f.Status != domain.FollowUpResponded {
		t.Errorf("status = %s, closed record was mutated", f.Status)
	}
}

func TestMarkRespondedWithoutRecord(t *testing.T) {
	m, _, _, _, _ := newTestManager(t)
	if err := m.MarkResponded(context.Background(), "SQ-9999", true); err != nil {
		t.Errorf("MarkResponded without record = %v, want nil", err)
	}
}
