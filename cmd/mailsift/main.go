package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/znz-systems/mailsift/internal/auth"
	"github.com/znz-systems/mailsift/internal/cleanup"
	"github.com/znz-systems/mailsift/internal/config"
	"github.com/znz-systems/mailsift/internal/database"
	"github.com/znz-systems/mailsift/internal/mailbox"
	"github.com/znz-systems/mailsift/internal/ratelimit"
	"github.com/znz-systems/mailsift/internal/rules"
	"github.com/znz-systems/mailsift/internal/scoring"
	"github.com/znz-systems/mailsift/internal/store"
	"github.com/znz-systems/mailsift/internal/store/postgres"
	"github.com/znz-systems/mailsift/internal/web"
	"github.com/znz-systems/mailsift/internal/web/handlers"
	"github.com/znz-systems/mailsift/migrations"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		if err := printNewKey(); err != nil {
			slog.Error("failed to generate api key", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database (optional)
	var (
		db      *sql.DB
		actions store.SenderActionStore
		pinger  handlers.Pinger
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		actions = postgres.NewSenderActionStore(db)
		pinger = db
	}

	// Rules
	backend, err := newRulesBackend(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to set up rules backend", "backend", cfg.RulesBackend, "error", err)
		os.Exit(1)
	}
	ruleStore := rules.NewStore(backend)
	if _, err := ruleStore.Load(ctx); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	// Scoring
	var classifier scoring.Classifier
	if cfg.AIEnabled() {
		classifier = scoring.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		slog.Info("no OPENAI_API_KEY set, scoring with the local tier only")
	}
	engine := scoring.NewEngine(classifier, ratelimit.NewPacer(cfg.AIBatchInterval), scoring.Options{
		BatchSize:    cfg.AIBatchSize,
		Timeout:      cfg.AITimeout,
		StageTimeout: 2 * cfg.AITimeout,
	})

	analyzer := cleanup.NewAnalyzer(cleanup.Options{
		DraftMaxAge: time.Duration(cfg.DraftMaxAgeDays) * 24 * time.Hour,
		MaxRecords:  cfg.MaxInboxRecords,
	})

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up mailbox provider", "provider", cfg.MailboxProvider, "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := web.NewRouter(web.RouterDeps{
		AnalysisHandler: handlers.NewAnalysisHandler(engine, analyzer, ruleStore, actions, provider, cfg.MaxInboxRecords),
		RulesHandler:    handlers.NewRulesHandler(ruleStore),
		SenderHandler:   handlers.NewSenderHandler(actions),
		Verifier:        auth.NewKeyVerifier(cfg.APIKeyHash),
		Limiter:         limiter,
		DB:              pinger,
	})

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("mailsift starting", "addr", addr, "rules_backend", cfg.RulesBackend, "mailbox", cfg.MailboxProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newRulesBackend(ctx context.Context, cfg *config.Config, db *sql.DB) (rules.Backend, error) {
	if cfg.RulesBackend == "postgres" {
		if db == nil {
			return nil, fmt.Errorf("RULES_BACKEND=postgres requires DATABASE_URL")
		}
		return rules.NewSQLBackend(postgres.NewRuleSetStore(db), cfg.RulesName), nil
	}
	return rules.NewBackend(ctx, rules.BackendConfig{
		Kind:              cfg.RulesBackend,
		Name:              cfg.RulesName,
		FSRoot:            cfg.RulesPath,
		S3Bucket:          cfg.RulesS3Bucket,
		S3Region:          cfg.RulesS3Region,
		S3Endpoint:        cfg.RulesS3Endpoint,
		S3AccessKeyID:     cfg.RulesS3AccessKey,
		S3SecretAccessKey: cfg.RulesS3SecretKey,
		S3ForcePathStyle:  cfg.RulesS3PathStyle,
	})
}

func newProvider(ctx context.Context, cfg *config.Config) (mailbox.Provider, error) {
	switch cfg.MailboxProvider {
	case "gmail":
		return mailbox.NewGmailProvider(ctx, cfg.GmailCredentials, cfg.GmailToken)
	case "imap":
		if cfg.IMAPHost == "" {
			return nil, fmt.Errorf("IMAP_HOST is required")
		}
		return mailbox.NewIMAPProvider(mailbox.IMAPConfig{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUser,
			Password: cfg.IMAPPass,
			TLS:      cfg.IMAPTLS,
		}), nil
	case "maildir":
		return mailbox.NewMaildirProvider(cfg.MaildirPath)
	default:
		return mailbox.Disabled{}, nil
	}
}

// printNewKey prints a fresh API key and the bcrypt hash to put in API_KEY_HASH.
func printNewKey() error {
	key, err := auth.GenerateKey()
	if err != nil {
		return err
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		return err
	}
	fmt.Printf("API key:      %s\nAPI_KEY_HASH: %s\n", key, hash)
	return nil
}
