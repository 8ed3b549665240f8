package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	DatabaseURL string

	RateLimitRPS   float64
	RateLimitBurst int
	APIKeyHash     string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AIBatchSize     int
	AIBatchInterval time.Duration
	AITimeout       time.Duration

	RulesBackend     string
	RulesPath        string
	RulesName        string
	RulesS3Bucket    string
	RulesS3Region    string
	RulesS3Endpoint  string
	RulesS3AccessKey string
	RulesS3SecretKey string
	RulesS3PathStyle bool

	DraftMaxAgeDays int
	MaxInboxRecords int

	MailboxProvider  string
	GmailCredentials string
	GmailToken       string
	IMAPHost         string
	IMAPPort         int
	IMAPUser         string
	IMAPPass         string
	IMAPTLS          bool
	MaildirPath      string
}

// AIEnabled reports whether an OpenAI-compatible key is configured.
func (c *Config) AIEnabled() bool { return c.OpenAIAPIKey != "" }

func Load() (*Config, error) {
	// A missing .env is fine; real environment variables win either way.
	_ = godotenv.Load()

	port, err := getIntEnv("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	rps, err := getFloatEnv("RATE_LIMIT_RPS", 5.0)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getIntEnv("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	batchSize, err := getIntEnv("AI_BATCH_SIZE", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_BATCH_SIZE: %w", err)
	}

	batchInterval, err := getDurationEnv("AI_BATCH_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_BATCH_INTERVAL: %w", err)
	}

	aiTimeout, err := getDurationEnv("AI_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TIMEOUT: %w", err)
	}

	draftDays, err := getIntEnv("DRAFT_MAX_AGE_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("invalid DRAFT_MAX_AGE_DAYS: %w", err)
	}

	maxInbox, err := getIntEnv("MAX_INBOX_RECORDS", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_INBOX_RECORDS: %w", err)
	}

	imapPort, err := getIntEnv("IMAP_PORT", 993)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAP_PORT: %w", err)
	}

	imapTLS, err := getBoolEnv("IMAP_TLS", true)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAP_TLS: %w", err)
	}

	pathStyle, err := getBoolEnv("RULES_S3_FORCE_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("invalid RULES_S3_FORCE_PATH_STYLE: %w", err)
	}

	provider := strings.ToLower(getEnv("MAILBOX_PROVIDER", "none"))
	switch provider {
	case "none", "gmail", "imap", "maildir":
	default:
		return nil, fmt.Errorf("invalid MAILBOX_PROVIDER: %q", provider)
	}

	return &Config{
		Port:             port,
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RateLimitRPS:     rps,
		RateLimitBurst:   burst,
		APIKeyHash:       getEnv("API_KEY_HASH", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AIBatchSize:      batchSize,
		AIBatchInterval:  batchInterval,
		AITimeout:        aiTimeout,
		RulesBackend:     strings.ToLower(getEnv("RULES_BACKEND", "file")),
		RulesPath:        getEnv("RULES_PATH", "./data"),
		RulesName:        getEnv("RULES_NAME", "rules.json"),
		RulesS3Bucket:    getEnv("RULES_S3_BUCKET", ""),
		RulesS3Region:    getEnv("RULES_S3_REGION", "us-east-1"),
		RulesS3Endpoint:  getEnv("RULES_S3_ENDPOINT", ""),
		RulesS3AccessKey: getEnv("RULES_S3_ACCESS_KEY_ID", ""),
		RulesS3SecretKey: getEnv("RULES_S3_SECRET_ACCESS_KEY", ""),
		RulesS3PathStyle: pathStyle,
		DraftMaxAgeDays:  draftDays,
		MaxInboxRecords:  maxInbox,
		MailboxProvider:  provider,
		GmailCredentials: getEnv("GMAIL_CREDENTIALS", "./credentials.json"),
		GmailToken:       getEnv("GMAIL_TOKEN", "./token.json"),
		IMAPHost:         getEnv("IMAP_HOST", ""),
		IMAPPort:         imapPort,
		IMAPUser:         getEnv("IMAP_USER", ""),
		IMAPPass:         getEnv("IMAP_PASS", ""),
		IMAPTLS:          imapTLS,
		MaildirPath:      getEnv("MAILDIR_PATH", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}
