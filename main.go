package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quote_agent/config"
	"quote_agent/core/domain"
	"quote_agent/internal/bootstrap"
	"quote_agent/pkg/logger"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "quote-agent",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "batch", "Run mode: batch, watch, followups, stats")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	agent, cleanup, err := bootstrap.NewAgent(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize agent: %v", err)
	}
	defer gracefulCleanup(cleanup)

	switch *mode {
	case "batch":
		runBatch(ctx, agent)
	case "watch":
		runWatch(ctx, agent)
	case "followups":
		runFollowUps(ctx, agent)
	case "stats":
		runStats(ctx, agent)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	return ctx, cancel
}

// gracefulCleanup runs cleanup with an upper bound so a wedged pool cannot
// hold the process open.
func gracefulCleanup(cleanup func()) {
	done := make(chan struct{})
	go func() {
		cleanup()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("Shutdown timed out, forcing exit")
		os.Exit(1)
	}
}

func runBatch(ctx context.Context, agent *bootstrap.Agent) {
	report, err := agent.Runner.RunBatch(ctx)
	if err != nil {
		logger.Fatal("Batch failed: %v", err)
	}
	logger.Info("Batch %s: fetched=%d processed=%d quotes=%d errors=%d followups=%d",
		report.BatchID, report.Fetched, report.Processed, report.Quotes, report.Errors, report.FollowUpsSent)
}

func runWatch(ctx context.Context, agent *bootstrap.Agent) {
	logger.Info("Watching inbox every %v", agent.Config.PollInterval)
	if err := agent.Runner.Watch(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Watch failed: %v", err)
	}
}

func runFollowUps(ctx context.Context, agent *bootstrap.Agent) {
	sent, err := agent.Runner.SendDueFollowUps(ctx)
	if err != nil {
		logger.Fatal("Follow-up sweep failed: %v", err)
	}
	logger.Info("Sent %d follow-up reminders", sent)
}

func runStats(ctx context.Context, agent *bootstrap.Agent) {
	stats, err := agent.Quotes.Stats(ctx)
	if err != nil {
		logger.Fatal("Failed to read stats: %v", err)
	}

	fmt.Printf("Quotations: %d total, %d flagged for review\n", stats.Total, stats.NeedsReview)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %-14s %d\n", status, n)
	}
	for typ, n := range stats.ByType {
		fmt.Printf("  %-14s %d\n", typ, n)
	}

	followUps, err := agent.FollowUps.List(ctx)
	if err != nil {
		logger.Fatal("Failed to read follow-ups: %v", err)
	}
	abandoned := 0
	for _, f := range followUps {
		if f.Status == domain.FollowUpAbandoned {
			abandoned++
		}
	}
	fmt.Printf("Follow-ups: %d (%d abandoned)\n", len(followUps), abandoned)
}
