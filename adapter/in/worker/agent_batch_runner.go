package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"quote_agent/core/domain"
	"quote_agent/core/port/in"
	"quote_agent/core/port/out"
	"quote_agent/core/service/triage"
	"quote_agent/pkg/logger"

	"github.com/google/uuid"
)

// =============================================================================
// Batch Runner
// =============================================================================

// BatchConfig holds batch orchestration settings.
type BatchConfig struct {
	MaxEmails    int
	MaxRetries   int
	PollInterval time.Duration
}

// DefaultBatchConfig returns defaults for a single-mailbox agent.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		MaxEmails:    50,
		MaxRetries:   1,
		PollInterval: 5 * time.Minute,
	}
}

// batchCounters accumulates per-batch totals across workers.
type batchCounters struct {
	processed     int64
	quotes        int64
	nonQuotes     int64
	skipped       int64
	errors        int64
	retried       int64
	llmCalls      int64
	followUpsSent int64

	failMu   sync.Mutex
	failures []domain.EmailFailure
}

func (c *batchCounters) recordFailure(emailID string, err error) {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	c.failures = append(c.failures, domain.EmailFailure{
		EmailID:   emailID,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

// BatchRunner fetches unread mail and fans it out over the worker pool. It
// is the pool's Handler: each job runs the full triage pipeline.
type BatchRunner struct {
	provider  out.EmailProvider
	triage    in.TriageService
	followUps *triage.FollowUpManager
	pool      *Pool
	cfg       *BatchConfig
	log       *logger.Logger

	// current batch counters; batches run one at a time
	mu      sync.Mutex
	current *batchCounters
}

// NewBatchRunner wires the runner. Call BindPool before the first batch.
func NewBatchRunner(provider out.EmailProvider, triageSvc in.TriageService, followUps *triage.FollowUpManager, cfg *BatchConfig, log *logger.Logger) *BatchRunner {
	if cfg == nil {
		cfg = DefaultBatchConfig()
	}
	if log == nil {
		log = logger.Default()
	}
	return &BatchRunner{
		provider:  provider,
		triage:    triageSvc,
		followUps: followUps,
		cfg:       cfg,
		log:       log,
	}
}

// BindPool attaches the worker pool. The runner and pool reference each
// other, so wiring happens in two steps.
func (r *BatchRunner) BindPool(p *Pool) {
	r.pool = p
}

// Process implements Handler: one job is one email through the pipeline.
func (r *BatchRunner) Process(ctx context.Context, msg *Message) error {
	switch msg.Type {
	case JobEmailProcess:
		return r.processEmail(ctx, msg)
	case JobFollowUpSend:
		sent, err := r.followUps.SendDue(ctx)
		if err != nil {
			return err
		}
		r.count(func(c *batchCounters) {
			atomic.AddInt64(&c.followUpsSent, int64(sent))
		})
		return nil
	default:
		r.log.Warn("unknown job type: %s", msg.Type)
		return nil
	}
}

func (r *BatchRunner) processEmail(ctx context.Context, msg *Message) error {
	result, err := r.triage.ProcessEmail(ctx, msg.Email)
	if err != nil {
		r.count(func(c *batchCounters) {
			if msg.Retries >= r.cfg.MaxRetries {
				atomic.AddInt64(&c.errors, 1)
				c.recordFailure(msg.Email.ID, err)
			} else {
				atomic.AddInt64(&c.retried, 1)
			}
		})
		return err
	}

	r.count(func(c *batchCounters) {
		atomic.AddInt64(&c.processed, 1)
		atomic.AddInt64(&c.llmCalls, int64(result.LLMCalls))
		switch {
		case result.Skipped:
			atomic.AddInt64(&c.skipped, 1)
		case result.Verdict != nil && result.Verdict.Actionable:
			atomic.AddInt64(&c.quotes, 1)
		default:
			atomic.AddInt64(&c.nonQuotes, 1)
		}
		if result.FollowUp {
			atomic.AddInt64(&c.followUpsSent, 1)
		}
	})
	return nil
}

func (r *BatchRunner) count(fn func(*batchCounters)) {
	r.mu.Lock()
	c := r.current
	r.mu.Unlock()
	if c != nil {
		fn(c)
	}
}

// RunBatch polls unread mail once and processes it to completion.
func (r *BatchRunner) RunBatch(ctx context.Context) (*domain.BatchReport, error) {
	batchID := uuid.New().String()[:8]
	log := r.log.WithBatch(batchID)
	start := time.Now()

	report := &domain.BatchReport{
		BatchID:   batchID,
		StartedAt: start,
	}

	emails, err := r.provider.ListUnread(ctx, r.cfg.MaxEmails)
	if err != nil {
		// An unreachable mailbox kills the whole run: no quotations and
		// one synthetic error entry.
		report.Errors = 1
		report.Failures = []domain.EmailFailure{{
			Error:     fmt.Sprintf("failed to fetch unread mail: %v", err),
			Timestamp: time.Now().UTC(),
		}}
		report.Duration = time.Since(start)
		return report, err
	}
	report.Fetched = len(emails)
	log.Info("fetched %d unread emails", len(emails))

	counters := &batchCounters{}
	r.mu.Lock()
	r.current = counters
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
	}()

	var wg sync.WaitGroup
	for _, email := range emails {
		wg.Add(1)
		msg := NewEmailJob(batchID, email)
		msg.done = wg.Done
		if !r.pool.Submit(msg) {
			// finish is idempotent, safe whether Submit consumed it or not
			msg.finish()
		}
	}

	batchDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(batchDone)
	}()
	select {
	case <-batchDone:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Sweep due reminders at the end of every batch. The sweep rides the
	// pool like any other job; a full pool falls back to a direct call.
	sweep := NewFollowUpJob(batchID)
	sweepDone := make(chan struct{})
	sweep.done = func() { close(sweepDone) }
	if r.pool.Submit(sweep) {
		select {
		case <-sweepDone:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if sent, err := r.followUps.SendDue(ctx); err != nil {
		log.WithError(err).Warn("follow-up sweep failed")
	} else {
		atomic.AddInt64(&counters.followUpsSent, int64(sent))
	}

	report.Processed = int(atomic.LoadInt64(&counters.processed))
	report.Quotes = int(atomic.LoadInt64(&counters.quotes))
	report.NonQuotes = int(atomic.LoadInt64(&counters.nonQuotes))
	report.Skipped = int(atomic.LoadInt64(&counters.skipped))
	report.Errors = int(atomic.LoadInt64(&counters.errors))
	report.Retried = int(atomic.LoadInt64(&counters.retried))
	report.LLMCalls = int(atomic.LoadInt64(&counters.llmCalls))
	report.FollowUpsSent = int(atomic.LoadInt64(&counters.followUpsSent))
	counters.failMu.Lock()
	report.Failures = counters.failures
	counters.failMu.Unlock()
	report.Duration = time.Since(start)

	log.WithDuration(report.Duration).
		WithField("fetched", report.Fetched).
		WithField("quotes", report.Quotes).
		WithField("errors", report.Errors).
		WithField("llm_calls", report.LLMCalls).
		Info("batch completed")
	for i, f := range report.Failures {
		if i == maxLoggedFailures {
			log.Warn("... and %d more failures", len(report.Failures)-maxLoggedFailures)
			break
		}
		log.WithMessage(f.EmailID).Warn("email failed: %s", f.Error)
	}

	return report, nil
}

// maxLoggedFailures caps the failure lines in the batch summary log.
const maxLoggedFailures = 3

// Watch runs batches on the configured poll interval until ctx is done.
func (r *BatchRunner) Watch(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	if _, err := r.RunBatch(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		r.log.WithError(err).Error("batch run failed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return err
				}
				r.log.WithError(err).Error("batch run failed")
			}
		}
	}
}

// SendDueFollowUps sweeps follow-up reminders outside a batch.
func (r *BatchRunner) SendDueFollowUps(ctx context.Context) (int, error) {
	return r.followUps.SendDue(ctx)
}

// Ensure BatchRunner implements the batch port
var _ in.BatchService = (*BatchRunner)(nil)
