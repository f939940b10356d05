package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// generateAgentID creates a unique agent ID using hostname and PID
func generateAgentID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "agent"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Environment string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleRefreshToken string

	// Gmail polling
	GmailQuery     string
	ProcessedLabel string
	ReviewLabel    string

	// Batch
	AgentID          string
	BatchMaxEmails   int
	BatchConcurrency int
	BatchMaxRetries  int
	EmailTimeout     time.Duration
	PollInterval     time.Duration

	// Store
	DataDir           string
	QuotationCacheTTL time.Duration
	FollowUpCacheTTL  time.Duration

	// Follow-ups
	MaxFollowUps        int
	FirstFollowUpDelay  time.Duration
	SecondFollowUpDelay time.Duration
	LLMPolishFollowUps  bool

	// Agency identity used in outgoing mail
	AgencyName      string
	AgencyEmail     string
	AgencySignature string
	AgencyPhone     string
}

func Load() (*Config, error) {
	return &Config{
		Environment: getEnv("ENV", "development"),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/oauth/callback"),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		// Gmail polling
		GmailQuery:     getEnv("GMAIL_QUERY", "is:unread in:inbox"),
		ProcessedLabel: getEnv("GMAIL_PROCESSED_LABEL", "quote-agent/processed"),
		ReviewLabel:    getEnv("GMAIL_REVIEW_LABEL", "quote-agent/review"),

		// Batch
		AgentID:          getEnv("AGENT_ID", generateAgentID()),
		BatchMaxEmails:   getEnvInt("BATCH_MAX_EMAILS", 50),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 3),
		BatchMaxRetries:  getEnvInt("BATCH_MAX_RETRIES", 1),
		EmailTimeout:     time.Duration(getEnvInt("EMAIL_TIMEOUT_MS", 25000)) * time.Millisecond,
		PollInterval:     time.Duration(getEnvInt("POLL_INTERVAL_SEC", 300)) * time.Second,

		// Store
		DataDir:           getEnv("DATA_DIR", "data"),
		QuotationCacheTTL: time.Duration(getEnvInt("QUOTATION_CACHE_TTL_SEC", 30)) * time.Second,
		FollowUpCacheTTL:  time.Duration(getEnvInt("FOLLOWUP_CACHE_TTL_SEC", 60)) * time.Second,

		// Follow-ups
		MaxFollowUps:        getEnvInt("MAX_FOLLOWUPS", 2),
		FirstFollowUpDelay:  time.Duration(getEnvInt("FIRST_FOLLOWUP_DELAY_HOURS", 72)) * time.Hour,
		SecondFollowUpDelay: time.Duration(getEnvInt("SECOND_FOLLOWUP_DELAY_HOURS", 168)) * time.Hour,
		LLMPolishFollowUps:  getEnvBool("LLM_POLISH_FOLLOWUPS", false),

		// Agency identity
		AgencyName:      getEnv("DMC_NAME", "Outtrip DMC"),
		AgencyEmail:     getEnv("DMC_EMAIL", ""),
		AgencySignature: getEnv("DMC_SIGNATURE", "Equipo de Reservas"),
		AgencyPhone:     getEnv("DMC_PHONE", ""),
	}, nil
}

// Validate checks required settings for running against live services.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if c.GoogleRefreshToken == "" {
		return fmt.Errorf("GOOGLE_REFRESH_TOKEN is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
