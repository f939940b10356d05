package persistence

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"quote_agent/core/domain"
	"quote_agent/core/port/out"
	"quote_agent/pkg/apperr"

	"github.com/goccy/go-json"
)

// =============================================================================
// Follow-Up Store
// =============================================================================

const (
	followUpsFile = "followups.json"

	// DefaultFollowUpCacheTTL is longer than the quotation TTL because
	// follow-up schedules change on the order of days.
	DefaultFollowUpCacheTTL = 60 * time.Second
)

type followUpFile struct {
	FollowUps []*domain.FollowUpRecord `json:"followups"`
}

// FollowUpStore implements out.FollowUpRepository over a flat JSON file.
type FollowUpStore struct {
	mu       sync.Mutex
	path     string
	cacheTTL time.Duration

	cache   *followUpFile
	cacheAt time.Time

	now func() time.Time
}

// NewFollowUpStore opens (or creates) the store under dataDir.
func NewFollowUpStore(dataDir string, cacheTTL time.Duration) (*FollowUpStore, error) {
	if cacheTTL <= 0 {
		cacheTTL = DefaultFollowUpCacheTTL
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperr.StoreError("create data dir", err)
	}
	s := &FollowUpStore{
		path:     filepath.Join(dataDir, followUpsFile),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
	if _, err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FollowUpStore) loadLocked() (*followUpFile, error) {
	if s.cache != nil && time.Since(s.cacheAt) < s.cacheTTL {
		return s.cache, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cache = &followUpFile{}
		s.cacheAt = time.Now()
		return s.cache, nil
	}
	if err != nil {
		return nil, apperr.StoreError("read followups", err)
	}

	var f followUpFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, apperr.StoreError("decode followups", err)
	}
	s.cache = &f
	s.cacheAt = time.Now()
	return s.cache, nil
}

func (s *FollowUpStore) saveLocked() error {
	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return apperr.StoreError("encode followups", err)
	}
	if err := atomicWrite(s.path, data); err != nil {
		return apperr.StoreError("write followups", err)
	}
	s.cacheAt = time.Now()
	return nil
}

// Upsert inserts or replaces a record, keyed by its ID.
func (s *FollowUpStore) Upsert(ctx context.Context, f *domain.FollowUpRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadLocked()
	if err != nil {
		return err
	}
	for i, existing := range file.FollowUps {
		if existing.ID == f.ID {
			file.FollowUps[i] = f
			return s.saveLocked()
		}
	}
	file.FollowUps = append(file.FollowUps, f)
	return s.saveLocked()
}

// GetByQuotation returns the record for a quotation or apperr.NotFound.
func (s *FollowUpStore) GetByQuotation(ctx context.Context, quotationID string) (*domain.FollowUpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	for _, f := range file.FollowUps {
		if f.QuotationID == quotationID {
			return f, nil
		}
	}
	return nil, apperr.NotFound("follow-up")
}

// ListDue returns pending records whose NextSendAt has passed, oldest first.
func (s *FollowUpStore) ListDue(ctx context.Context) ([]*domain.FollowUpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	now := s.now()
	var due []*domain.FollowUpRecord
	for _, f := range file.FollowUps {
		if f.Status == domain.FollowUpPending && f.Due(now) {
			due = append(due, f)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextSendAt.Before(due[j].NextSendAt)
	})
	return due, nil
}

// List returns all follow-up records.
func (s *FollowUpStore) List(ctx context.Context) ([]*domain.FollowUpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	result := make([]*domain.FollowUpRecord, len(file.FollowUps))
	copy(result, file.FollowUps)
	return result, nil
}

// Ensure FollowUpStore implements the repository port
var _ out.FollowUpRepository = (*FollowUpStore)(nil)
