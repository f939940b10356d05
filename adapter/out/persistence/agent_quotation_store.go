// Package persistence provides file-backed adapters implementing outbound ports.
package persistence

import (
	"context"
	"fmt"
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
// Quotation Store
// =============================================================================

const (
	quotationsFile = "quotations.json"
	processedFile  = "processed.json"

	// DefaultQuotationCacheTTL bounds how stale a read may be after an
	// external edit to the data file.
	DefaultQuotationCacheTTL = 30 * time.Second
)

// quotationFile is the on-disk layout of quotations.json.
type quotationFile struct {
	Seq        int                 `json:"seq"`
	Quotations []*domain.Quotation `json:"quotations"`
}

// processedSet is the on-disk layout of processed.json.
type processedSet struct {
	MessageIDs []string `json:"message_ids"`
}

// QuotationStore implements out.QuotationRepository over flat JSON files.
// A single mutex serializes every access: reads go through a TTL cache
// that a lapsed read refills, so readers mutate state too.
type QuotationStore struct {
	mu            sync.Mutex
	path          string
	processedPath string
	cacheTTL      time.Duration

	cache     *quotationFile
	cacheAt   time.Time
	processed map[string]struct{}
}

// NewQuotationStore opens (or creates) the store under dataDir.
func NewQuotationStore(dataDir string, cacheTTL time.Duration) (*QuotationStore, error) {
	if cacheTTL <= 0 {
		cacheTTL = DefaultQuotationCacheTTL
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperr.StoreError("create data dir", err)
	}
	s := &QuotationStore{
		path:          filepath.Join(dataDir, quotationsFile),
		processedPath: filepath.Join(dataDir, processedFile),
		cacheTTL:      cacheTTL,
	}
	if _, err := s.loadLocked(); err != nil {
		return nil, err
	}
	if err := s.loadProcessedLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadLocked reads the data file into the cache. Callers hold mu or run
// before the store is shared.
func (s *QuotationStore) loadLocked() (*quotationFile, error) {
	if s.cache != nil && time.Since(s.cacheAt) < s.cacheTTL {
		return s.cache, nil
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.cache = &quotationFile{}
		s.cacheAt = time.Now()
		return s.cache, nil
	}
	if err != nil {
		return nil, apperr.StoreError("read quotations", err)
	}

	var f quotationFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, apperr.StoreError("decode quotations", err)
	}
	s.cache = &f
	s.cacheAt = time.Now()
	return s.cache, nil
}

// saveLocked writes the cache atomically: temp file in the same directory,
// then rename over the target.
func (s *QuotationStore) saveLocked() error {
	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return apperr.StoreError("encode quotations", err)
	}
	if err := atomicWrite(s.path, data); err != nil {
		return apperr.StoreError("write quotations", err)
	}
	s.cacheAt = time.Now()
	return nil
}

func (s *QuotationStore) loadProcessedLocked() error {
	s.processed = make(map[string]struct{})
	data, err := os.ReadFile(s.processedPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperr.StoreError("read processed set", err)
	}
	var set processedSet
	if err := json.Unmarshal(data, &set); err != nil {
		return apperr.StoreError("decode processed set", err)
	}
	for _, id := range set.MessageIDs {
		s.processed[id] = struct{}{}
	}
	return nil
}

func (s *QuotationStore) saveProcessedLocked() error {
	set := processedSet{MessageIDs: make([]string, 0, len(s.processed))}
	for id := range s.processed {
		set.MessageIDs = append(set.MessageIDs, id)
	}
	sort.Strings(set.MessageIDs)

	data, err := json.MarshalIndent(&set, "", "  ")
	if err != nil {
		return apperr.StoreError("encode processed set", err)
	}
	if err := atomicWrite(s.processedPath, data); err != nil {
		return apperr.StoreError("write processed set", err)
	}
	return nil
}

// Insert assigns the next sequential ID and persists the quotation.
func (s *QuotationStore) Insert(ctx context.Context, q *domain.Quotation) (*domain.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	f.Seq++
	q.ID = fmt.Sprintf("SQ-%04d", f.Seq)
	f.Quotations = append(f.Quotations, q)

	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return q, nil
}

// Update rewrites an existing quotation in place.
func (s *QuotationStore) Update(ctx context.Context, q *domain.Quotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return err
	}
	for i, existing := range f.Quotations {
		if existing.ID == q.ID {
			f.Quotations[i] = q
			return s.saveLocked()
		}
	}
	return apperr.NotFound("quotation")
}

// GetByID returns a quotation or apperr.NotFound.
func (s *QuotationStore) GetByID(ctx context.Context, id string) (*domain.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	for _, q := range f.Quotations {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, apperr.NotFound("quotation")
}

// FindBySender returns the newest open quotation from a sender, nil if none.
// Quoted and closed records are final and never merged into.
func (s *QuotationStore) FindBySender(ctx context.Context, email string) (*domain.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	var newest *domain.Quotation
	for _, q := range f.Quotations {
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

// List returns all quotations, newest first.
func (s *QuotationStore) List(ctx context.Context) ([]*domain.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Quotation, len(f.Quotations))
	copy(result, f.Quotations)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// IsProcessed reports whether a provider message ID was already handled.
func (s *QuotationStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[messageID]
	return ok, nil
}

// MarkProcessed records a provider message ID as handled.
func (s *QuotationStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[messageID]; ok {
		return nil
	}
	s.processed[messageID] = struct{}{}
	return s.saveProcessedLocked()
}

// Stats aggregates record counts by status and type.
func (s *QuotationStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.loadLocked()
	if err != nil {
		return nil, err
	}

	stats := &domain.StoreStats{
		Total:    len(f.Quotations),
		ByStatus: make(map[domain.QuotationStatus]int),
		ByType:   make(map[domain.RequestType]int),
	}
	for _, q := range f.Quotations {
		stats.ByStatus[q.Status]++
		stats.ByType[q.Type]++
		if q.NeedsReview {
			stats.NeedsReview++
		}
	}
	return stats, nil
}

// atomicWrite writes data to a temp file in the target directory and
// renames it over path so readers never see a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Ensure QuotationStore implements the repository port
var _ out.QuotationRepository = (*QuotationStore)(nil)
