package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	LedgerRelaxed = "relaxed"
	LedgerAtomic  = "atomic"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	LedgerMode   string

	// Identity tokens
	JWTSecret string
	JWTIssuer string

	// AMQP change events; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Reports
	ReportTimezone  string
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	// Worker
	AuditSchedule string
	ExportTimeout time.Duration
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneybook.db"),
		LedgerMode:   getEnv("LEDGER_MODE", LedgerRelaxed),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneybook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "moneybook_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		ReportTimezone:  getEnv("REPORT_TIMEZONE", "UTC"),
		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 256),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		AuditSchedule: getEnv("AUDIT_SCHEDULE", "@every 1h"),
		ExportTimeout: getEnvDuration("EXPORT_TIMEOUT", 30*time.Second),
	}
}

// ExportEnabled reports whether transactions should be mirrored to Google Sheets.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Location resolves ReportTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateWorker checks what the background worker needs beyond Validate.
// The worker reads the documents the server wrote, so it must share the
// server's sqlite database.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.DataBackend != BackendSQLite {
		errors = append(errors, fmt.Sprintf("worker requires the %s data backend, got '%s'", BackendSQLite, c.DataBackend))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	validModes := []string{LedgerRelaxed, LedgerAtomic}
	if !slices.Contains(validModes, c.LedgerMode) {
		errors = append(errors, fmt.Sprintf("invalid ledger mode '%s': must be one of %v", c.LedgerMode, validModes))
	}

	if c.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 characters")
	}

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
	}

	if c.ExportEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when export is enabled")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid report timezone '%s': %v", c.ReportTimezone, err))
	}
	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}

	if c.AuditSchedule != "" {
		if _, err := cron.ParseStandard(c.AuditSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid audit schedule '%s': %v", c.AuditSchedule, err))
		}
	}
	if c.ExportTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export timeout %v: must be at least 1 second", c.ExportTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
