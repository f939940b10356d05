// Package bootstrap wires configuration, adapters, and services into a
// runnable agent.
package bootstrap

import (
	"context"
	"os"
	"time"

	"quote_agent/adapter/in/worker"
	"quote_agent/adapter/out/persistence"
	"quote_agent/adapter/out/provider"
	"quote_agent/config"
	"quote_agent/core/agent/llm"
	"quote_agent/core/port/out"
	"quote_agent/core/service/classification"
	"quote_agent/core/service/triage"
	"quote_agent/pkg/logger"

	"github.com/rs/zerolog"
)

// Agent holds the wired application.
type Agent struct {
	Config *config.Config

	Provider  out.EmailProvider
	LLM       out.LLM
	Quotes    out.QuotationRepository
	FollowUps out.FollowUpRepository

	Runner *worker.BatchRunner

	pool *worker.Pool
	log  *logger.Logger
}

// NewAgent builds the full dependency graph. The returned cleanup stops the
// worker pool.
func NewAgent(ctx context.Context, cfg *config.Config) (*Agent, func(), error) {
	log := logger.Default()

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "agent").Logger()

	// Outbound adapters
	llmClient := llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})

	gmailAdapter, err := provider.NewGmailAdapter(ctx, &provider.GmailConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		RefreshToken: cfg.GoogleRefreshToken,
		Query:        cfg.GmailQuery,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	quoteStore, err := persistence.NewQuotationStore(cfg.DataDir, cfg.QuotationCacheTTL)
	if err != nil {
		return nil, nil, err
	}
	followUpStore, err := persistence.NewFollowUpStore(cfg.DataDir, cfg.FollowUpCacheTTL)
	if err != nil {
		return nil, nil, err
	}

	// Core services
	classifier := classification.NewClassifier(llmClient, log)

	agency := triage.AgencyIdentity{
		Name:      cfg.AgencyName,
		Email:     cfg.AgencyEmail,
		Signature: cfg.AgencySignature,
		Phone:     cfg.AgencyPhone,
	}
	followUpMgr := triage.NewFollowUpManager(followUpStore, quoteStore, gmailAdapter, llmClient, agency, triage.FollowUpConfig{
		MaxSends:      cfg.MaxFollowUps,
		FirstDelay:    cfg.FirstFollowUpDelay,
		SecondDelay:   cfg.SecondFollowUpDelay,
		PolishWithLLM: cfg.LLMPolishFollowUps,
	}, log)

	triageSvc := triage.NewService(classifier, llmClient, gmailAdapter, quoteStore, followUpMgr, triage.ServiceConfig{
		ProcessedLabel: cfg.ProcessedLabel,
		ReviewLabel:    cfg.ReviewLabel,
	}, log)

	// Batch orchestration
	runner := worker.NewBatchRunner(gmailAdapter, triageSvc, followUpMgr, &worker.BatchConfig{
		MaxEmails:    cfg.BatchMaxEmails,
		MaxRetries:   cfg.BatchMaxRetries,
		PollInterval: cfg.PollInterval,
	}, log)

	poolCfg := worker.DefaultPoolConfig()
	poolCfg.Workers = cfg.BatchConcurrency
	poolCfg.JobTimeout = cfg.EmailTimeout
	poolCfg.MaxRetries = cfg.BatchMaxRetries

	pool := worker.NewPool(runner, poolCfg, zlog)
	runner.BindPool(pool)
	pool.Start()

	agent := &Agent{
		Config:    cfg,
		Provider:  gmailAdapter,
		LLM:       llmClient,
		Quotes:    quoteStore,
		FollowUps: followUpStore,
		Runner:    runner,
		pool:      pool,
		log:       log,
	}

	cleanup := func() {
		pool.Stop()
	}
	return agent, cleanup, nil
}
