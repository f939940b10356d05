package persistence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"quote_agent/core/domain"
	"quote_agent/pkg/apperr"
)

func newStore(t *testing.T, dir string) *QuotationStore {
	t.Helper()
	s, err := NewQuotationStore(dir, 0)
	if err != nil {
		t.Fatalf("NewQuotationStore: %v", err)
	}
	return s
}

func quotation(email string, status domain.QuotationStatus) *domain.Quotation {
	now := time.Now().UTC()
	return &domain.Quotation{
		Status:          status,
		Type:            domain.RequestTypeB2C,
		Contact:         domain.ContactInfo{Name: "Ana", Email: email},
		Trip:            domain.TripDetails{Destination: "Cusco", Adults: 2},
		SourceMessageID: "msg-" + email,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestInsertSequentialIDs(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	ctx := context.Background()

	for i, want := range []string{"SQ-0001", "SQ-0002", "SQ-0003"} {
		q, err := s.Insert(ctx, quotation("ana@gmail.com", domain.StatusReady))
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		if q.ID != want {
			t.Errorf("ID = %q, want %q", q.ID, want)
		}
	}

	// The sequence survives a restart.
	reopened := newStore(t, dir)
	q, err := reopened.Insert(ctx, quotation("luis@gmail.com", domain.StatusReady))
	if err != nil {
		t.Fatalf("Insert after reopen: %v", err)
	}
	if q.ID != "SQ-0004" {
		t.Errorf("ID after reopen = %q, want SQ-0004", q.ID)
	}
}

func TestInsertConcurrentIDsUnique(t *testing.T) {
	s := newStore(t, t.TempDir())
	ctx := context.Background()

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := s.Insert(ctx, quotation("ana@gmail.com", domain.StatusReady))
			if err != nil {
				t.Errorf("Insert: %v", err)
				return
			}
			ids <- q.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d unique IDs, want %d", len(seen), n)
	}
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	ctx := context.Background()

	q, err := s.Insert(ctx, quotation("ana@gmail.com", domain.StatusPendingInfo))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	q.Status = domain.StatusReady
	q.Trip.StartDate = "2026-03-10"
	if err := s.Update(ctx, q); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := newStore(t, dir).GetByID(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if got.Status != domain.StatusReady || got.Trip.StartDate != "2026-03-10" {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := quotation("x@gmail.com", domain.StatusReady)
	missing.ID = "SQ-9999"
	if err := s.Update(ctx, missing); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Errorf("Update unknown = %v, want NOT_FOUND", err)
	}
}

func TestFindBySender(t *testing.T) {
	s := newStore(t, t.TempDir())
	ctx := context.Background()

	closed := quotation("ana@gmail.com", domain.StatusClosed)
	if _, err := s.Insert(ctx, closed); err != nil {
		t.Fatalf("Insert closed: %v", err)
	}

	older := quotation("ana@gmail.com", domain.StatusPendingInfo)
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	if _, err := s.Insert(ctx, older); err != nil {
		t.Fatalf("Insert older: %v", err)
	}
	newer, err := s.Insert(ctx, quotation("ana@gmail.com", domain.StatusReady))
	if err != nil {
		t.Fatalf("Insert newer: %v", err)
	}

	got, err := s.FindBySender(ctx, "ana@gmail.com")
	if err != nil {
		t.Fatalf("FindBySender: %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Errorf("FindBySender = %+v, want %s", got, newer.ID)
	}

	// Final records are never merge targets, unknown senders match nothing.
	got, err = s.FindBySender(ctx, "nobody@gmail.com")
	if err != nil {
		t.Fatalf("FindBySender unknown: %v", err)
	}
	if got != nil {
		t.Errorf("FindBySender unknown = %+v, want nil", got)
	}
}

func TestProcessedGuard(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	ctx := context.Background()

	if done, _ := s.IsProcessed(ctx, "msg-1"); done {
		t.Error("fresh store reports msg-1 processed")
	}
	if err := s.MarkProcessed(ctx, "msg-1"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	// Marking twice is a no-op.
	if err := s.MarkProcessed(ctx, "msg-1"); err != nil {
		t.Fatalf("second MarkProcessed: %v", err)
	}

	if done, _ := newStore(t, dir).IsProcessed(ctx, "msg-1"); !done {
		t.Error("processed set lost across reopen")
	}
}

func TestStats(t *testing.T) {
	s := newStore(t, t.TempDir())
	ctx := context.Background()

	reviewed := quotation("a@gmail.com", domain.StatusReady)
	reviewed.NeedsReview = true
	for _, q := range []*domain.Quotation{
		reviewed,
		quotation("b@gmail.com", domain.StatusPendingInfo),
		quotation("c@gmail.com", domain.StatusPendingInfo),
	} {
		if _, err := s.Insert(ctx, q); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[domain.StatusPendingInfo] != 2 {
		t.Errorf("pending_info = %d, want 2", stats.ByStatus[domain.StatusPendingInfo])
	}
	if stats.NeedsReview != 1 {
		t.Errorf("NeedsReview = %d, want 1", stats.NeedsReview)
	}
}

// A nanosecond TTL forces every read to reload from disk, so readers
// and writers contend on the cache on every call.
func TestConcurrentReadersRefillCache(t *testing.T) {
	s, err := NewQuotationStore(t.TempDir(), time.Nanosecond)
	if err != nil {
		t.Fatalf("NewQuotationStore: %v", err)
	}
	ctx := context.Background()

	q, err := s.Insert(ctx, quotation("ana@gmail.com", domain.StatusPendingInfo))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := s.GetByID(ctx, q.ID); err != nil {
					t.Errorf("GetByID: %v", err)
					return
				}
				if _, err := s.List(ctx); err != nil {
					t.Errorf("List: %v", err)
					return
				}
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				upd := *q
				upd.Status = domain.StatusReady
				if err := s.Update(ctx, &upd); err != nil {
					t.Errorf("Update: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, dir)
	if _, err := s.Insert(context.Background(), quotation("ana@gmail.com", domain.StatusReady)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", filepath.Join(dir, e.Name()))
		}
	}
}
