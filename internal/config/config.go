package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	Port string

	// Record storage
	RecordBackend string // csv | sqlite | postgres
	CSVPath       string
	SQLiteDBPath  string
	DatabaseURI   string

	// Completion service (OpenAI-compatible)
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
	LLMTimeout time.Duration

	// WhatsApp delivery
	AccessToken      string
	PhoneNumberID    string
	VerifyToken      string
	DefaultRecipient string
	GraphAPIVersion  string
	TemplateName     string

	// AMQP (optional; record-created events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (worker)
	SpreadsheetID            string
	SheetName                string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// Load reads configuration from the environment once. A .env file is
// loaded when present, so local development does not need exported vars.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		RecordBackend: getEnv("RECORD_BACKEND", "csv"),
		CSVPath:       getEnv("CSV_PATH", "./data/expenses.csv"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/expensebot.db"),
		DatabaseURI:   getEnv("DATABASE_URI", ""),

		LLMAPIKey:  getEnv("GROQ_API_KEY", ""),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:   getEnv("LLM_MODEL", "llama3-8b-8192"),
		LLMTimeout: getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		AccessToken:      getEnv("ACCESS_TOKEN", ""),
		PhoneNumberID:    getEnv("PHONE_NUMBER_ID", ""),
		VerifyToken:      getEnv("VERIFY_TOKEN", ""),
		DefaultRecipient: getEnv("RECIPIENT_WAID", ""),
		GraphAPIVersion:  getEnv("GRAPH_API_VERSION", "v21.0"),
		TemplateName:     getEnv("TEMPLATE_NAME", "reengagement_message"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensebot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_events"),

		SpreadsheetID:            getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetName:                getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
	}
}

// Validate checks the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Port == "" {
		errs = append(errs, "port cannot be empty")
	}

	switch c.RecordBackend {
	case "csv":
		if c.CSVPath == "" {
			errs = append(errs, "CSV path cannot be empty when using csv backend")
		} else if dir := filepath.Dir(c.CSVPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create CSV directory '%s': %v", dir, err))
				}
			}
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURI == "" {
			errs = append(errs, "DATABASE_URI is required when using postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid record backend '%s': must be one of [csv sqlite postgres]", c.RecordBackend))
	}

	if c.LLMAPIKey == "" {
		errs = append(errs, "GROQ_API_KEY is required")
	}
	if c.AccessToken == "" {
		errs = append(errs, "ACCESS_TOKEN is required")
	}
	if c.PhoneNumberID == "" {
		errs = append(errs, "PHONE_NUMBER_ID is required")
	}
	if c.VerifyToken == "" {
		errs = append(errs, "VERIFY_TOKEN is required")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// GoogleCredentials resolves the service account credentials for the
// Sheets mirror. Inline JSON wins; otherwise the configured credentials
// file is read.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if strings.TrimSpace(c.GoogleServiceAccountJSON) != "" {
		return []byte(c.GoogleServiceAccountJSON), nil
	}
	if file := strings.TrimSpace(c.GoogleServiceAccountFile); file != "" {
		credentials, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return credentials, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
