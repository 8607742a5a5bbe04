package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port    string
	BaseURL string

	// Database
	DatabaseURL string

	// Auth
	SecretKey     string
	SecretKeyFile string
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	CookieSecure  bool

	// Transaction feed
	FeedURL     string
	FeedTimeout time.Duration

	// Mail
	MailServer    string
	MailPort      int
	MailUsername  string
	MailPassword  string
	MailFrom      string
	MailTLS       string
	MailTimeout   time.Duration
	MailTransport string

	// AMQP (mail outbox)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report scheduler
	SchedulerEnabled   bool
	ReportHour         int
	ReportPollInterval time.Duration
	ReportTimezone     string
	ReportCurrency     string
	AppName            string

	// Google Sheets report archive (optional)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:    getEnv("PORT", "8081"),
		BaseURL: getEnv("BASE_URL", "http://localhost:8081"),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://./data/budgetmail.db"),

		SecretKey:     getEnv("SECRET_KEY", ""),
		SecretKeyFile: getEnv("SECRET_KEY_FILE", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", 30*time.Minute),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),

		FeedURL:     getEnv("FEED_URL", "https://pgbankapi.onrender.com/transactions"),
		FeedTimeout: getEnvDuration("FEED_TIMEOUT", 5*time.Second),

		MailServer:    getEnv("MAIL_SERVER", "smtp.gmail.com"),
		MailPort:      getEnvInt("MAIL_PORT", 587),
		MailUsername:  getEnv("MAIL_USERNAME", ""),
		MailPassword:  getEnv("MAIL_PASSWORD", ""),
		MailFrom:      getEnv("MAIL_FROM", "reports@expenserfx.com"),
		MailTLS:       getEnv("MAIL_TLS", "mandatory"),
		MailTimeout:   getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
		MailTransport: getEnv("MAIL_TRANSPORT", "smtp"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetmail"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "outbound_mail"),

		SchedulerEnabled:   getEnvBool("REPORT_SCHEDULER_ENABLED", true),
		ReportHour:         getEnvInt("REPORT_HOUR", 20),
		ReportPollInterval: getEnvDuration("REPORT_POLL_INTERVAL", time.Hour),
		ReportTimezone:     getEnv("REPORT_TIMEZONE", "Local"),
		ReportCurrency:     getEnv("REPORT_CURRENCY", "₹"),
		AppName:            getEnv("APP_NAME", "ExpenserFX"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Reports"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate database URL
	if dialect, path, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		errors = append(errors, err.Error())
	} else if dialect == "sqlite" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Secret key: explicit value or a readable file
	if c.SecretKey == "" && c.SecretKeyFile == "" {
		errors = append(errors, "either SECRET_KEY or SECRET_KEY_FILE must be provided")
	} else if c.SecretKey == "" {
		if _, err := c.ResolveSecretKey(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.ResetTokenTTL < time.Minute || c.ResetTokenTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reset token TTL %v: must be between 1 minute and 24 hours", c.ResetTokenTTL))
	}

	// Validate feed
	if parsedURL, err := url.Parse(c.FeedURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid feed URL '%s': must be http or https", c.FeedURL))
	}
	if c.FeedTimeout <= 0 || c.FeedTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid feed timeout %v: must be between 0 and 1 minute", c.FeedTimeout))
	}

	// Validate mail
	validTransports := []string{"smtp", "amqp"}
	if !contains(validTransports, c.MailTransport) {
		errors = append(errors, fmt.Sprintf("invalid mail transport '%s': must be one of %v", c.MailTransport, validTransports))
	}
	validTLS := []string{"mandatory", "opportunistic", "none"}
	if !contains(validTLS, c.MailTLS) {
		errors = append(errors, fmt.Sprintf("invalid mail TLS policy '%s': must be one of %v", c.MailTLS, validTLS))
	}
	if c.MailPort < 1 || c.MailPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid mail port %d: must be between 1 and 65535", c.MailPort))
	}
	if c.MailServer == "" {
		errors = append(errors, "mail server cannot be empty")
	}
	if c.MailFrom == "" {
		errors = append(errors, "mail sender address cannot be empty")
	}
	if c.MailTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid mail timeout %v: must be positive", c.MailTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	} else if c.MailTransport == "amqp" {
		errors = append(errors, "AMQP_URL is required when MAIL_TRANSPORT is amqp")
	}

	// Validate scheduler
	if c.ReportHour < 0 || c.ReportHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid report hour %d: must be between 0 and 23", c.ReportHour))
	}
	if c.ReportPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report poll interval %v: must be at least 1 second", c.ReportPollInterval))
	} else if c.ReportPollInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report poll interval %v: must be at most 1 hour", c.ReportPollInterval))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid report timezone '%s': %v", c.ReportTimezone, err))
	}

	// Validate Google Sheets archive if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ResolveSecretKey returns SECRET_KEY, or the trimmed contents of SECRET_KEY_FILE.
func (c *Config) ResolveSecretKey() (string, error) {
	if c.SecretKey != "" {
		return c.SecretKey, nil
	}
	b, err := os.ReadFile(c.SecretKeyFile)
	if err != nil {
		return "", fmt.Errorf("cannot read secret key file '%s': %v", c.SecretKeyFile, err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", fmt.Errorf("secret key file '%s' is empty", c.SecretKeyFile)
	}
	return key, nil
}

// Location resolves the report timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.ReportTimezone == "" || c.ReportTimezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.ReportTimezone)
}

// ParseDatabaseURL splits DATABASE_URL into a dialect ("sqlite" or "postgres")
// and a driver-specific data source name.
func ParseDatabaseURL(raw string) (dialect, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "sqlite://"):
		dsn = strings.TrimPrefix(raw, "sqlite://")
		if dsn == "" {
			return "", "", fmt.Errorf("invalid database URL '%s': empty sqlite path", raw)
		}
		return "sqlite", dsn, nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		if _, err := url.Parse(raw); err != nil {
			return "", "", fmt.Errorf("invalid database URL '%s': %v", raw, err)
		}
		return "postgres", raw, nil
	default:
		return "", "", fmt.Errorf("invalid database URL '%s': scheme must be sqlite:// or postgres://", raw)
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
