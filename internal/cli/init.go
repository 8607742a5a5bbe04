// Package cli holds the startup steps shared by cmd/budgetmail and
// cmd/mail-worker. Every helper logs and exits on failure.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budgetmail/internal/config"
	applog "budgetmail/internal/log"
	"budgetmail/internal/mailer"
	"budgetmail/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
	})
	applog.SetDefault(logger)
	return logger
}

// ValidateConfig exits the process when cfg is invalid.
func ValidateConfig(logger *applog.Logger, cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
}

// OpenStorage opens and migrates the database named by cfg.DatabaseURL.
func OpenStorage(logger *applog.Logger, cfg *config.Config) *storage.Repository {
	dialect, dsn, err := config.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Invalid database URL", "error", err)
		os.Exit(1)
	}
	repo, err := storage.Open(dialect, dsn)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "dialect", dialect)
		os.Exit(1)
	}
	logger.Info("Database ready", "dialect", dialect)
	return repo
}

// SMTPSender builds the direct SMTP sender from the MAIL_* settings.
func SMTPSender(logger *applog.Logger, cfg *config.Config) *mailer.SMTPSender {
	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
		TLS:      cfg.MailTLS,
		Timeout:  cfg.MailTimeout,
	})
	if err != nil {
		logger.Error("Failed to initialize SMTP sender", "error", err)
		os.Exit(1)
	}
	return sender
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
