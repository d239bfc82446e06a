package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported authoritative store drivers.
const (
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the configuration surface of the server binary.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	Farm      FarmDefaults
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string
	LogLevel string
}

// StoreConfig selects the authoritative store backend.
type StoreConfig struct {
	Driver string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// PostgresConfig holds the PostgreSQL connection string.
type PostgresConfig struct {
	URL string
}

// RedisConfig configures the second level of the animal lookup cache. An
// empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures weight event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	WeightsTopic string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether both credentials and a target spreadsheet are set.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings for the matrix export.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
	FarmIDs      []string
}

// FarmDefaults apply to farms without stored alert thresholds.
type FarmDefaults struct {
	LowGainThresholdADG float64
	OverdueDays         int
}

// AgentConfig is the configuration of the field agent binary.
type AgentConfig struct {
	APIBaseURL   string
	APIToken     string
	LocalDBPath  string
	FarmID       string
	UserID       string
	SyncSchedule string
	LogLevel     string
	Farm         FarmDefaults
}

// Load reads environment variables (optionally from the provided file) and
// materializes the server Config.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var p parser
	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			APIToken: os.Getenv("API_TOKEN"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverMongoDB)),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "pastvra"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_URL"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
			TTL:      p.duration("CACHE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("KAFKA_BROKERS")),
			WeightsTopic: getenvWithDefault("KAFKA_WEIGHTS_TOPIC", "pastvra.weights"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
			FarmIDs:      splitList(os.Getenv("REPORT_FARM_IDS")),
		},
		Farm: p.farmDefaults(),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAgent reads the field agent configuration.
func LoadAgent(envFile string) (*AgentConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	var p parser
	cfg := &AgentConfig{
		APIBaseURL:   getenvWithDefault("AGENT_API_BASE_URL", "http://localhost:8080"),
		APIToken:     os.Getenv("AGENT_API_TOKEN"),
		LocalDBPath:  getenvWithDefault("AGENT_LOCAL_DB_PATH", "pastvra-agent.db"),
		FarmID:       os.Getenv("AGENT_FARM_ID"),
		UserID:       os.Getenv("AGENT_USER_ID"),
		SyncSchedule: getenvWithDefault("AGENT_SYNC_SCHEDULE", "@every 5m"),
		LogLevel:     getenvWithDefault("LOG_LEVEL", "warn"),
		Farm:         p.farmDefaults(),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("POSTGRES_URL must be provided when STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of %q, %q or %q, got %q", DriverMongoDB, DriverPostgres, DriverMemory, c.Store.Driver)
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.WeightsTopic == "" {
		return errors.New("KAFKA_WEIGHTS_TOPIC must not be empty when KAFKA_BROKERS is set")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	if c.Sheets.Enabled() && c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}
	if _, err := time.LoadLocation(c.Reporting.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	return c.Farm.Validate()
}

// Validate ensures the agent can reach the server and attribute its records.
func (c *AgentConfig) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.APIBaseURL == "":
		return errors.New("AGENT_API_BASE_URL must be provided")
	case c.LocalDBPath == "":
		return errors.New("AGENT_LOCAL_DB_PATH must be provided")
	case c.FarmID == "":
		return errors.New("AGENT_FARM_ID must be provided")
	case c.UserID == "":
		return errors.New("AGENT_USER_ID must be provided")
	case c.SyncSchedule == "":
		return errors.New("AGENT_SYNC_SCHEDULE must be provided")
	}

	return c.Farm.Validate()
}

// Validate checks that both thresholds are positive.
func (f FarmDefaults) Validate() error {
	if f.LowGainThresholdADG <= 0 {
		return errors.New("FARM_LOW_GAIN_THRESHOLD_ADG must be positive")
	}
	if f.OverdueDays <= 0 {
		return errors.New("FARM_OVERDUE_DAYS must be positive")
	}
	return nil
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
		return nil
	}
	// Missing .env files are acceptable when configuration comes from the
	// environment directly.
	_ = godotenv.Load()
	return nil
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) farmDefaults() FarmDefaults {
	return FarmDefaults{
		LowGainThresholdADG: p.float("FARM_LOW_GAIN_THRESHOLD_ADG", 0.3),
		OverdueDays:         p.int("FARM_OVERDUE_DAYS", 45),
	}
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be an integer: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) float(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(fmt.Errorf("%s must be a number: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be a duration: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
