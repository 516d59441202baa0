package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	HTTPAddr    string   `yaml:"http_addr"`
	GRPCAddr    string   `yaml:"grpc_addr"` // empty disables the health server
	CORSOrigins []string `yaml:"cors_origins"`

	// DB
	Env    string `yaml:"env"`     // "dev" | "prod"
	DBPath string `yaml:"db_path"` // e.g. "./data/tollgate.db"

	// Ledger
	LedgerBackend string        `yaml:"ledger_backend"` // sqlite | redis | postgres | memory
	RedisURL      string        `yaml:"redis_url"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	PostgresURL   string        `yaml:"postgres_url"`
	LedgerTimeout time.Duration `yaml:"ledger_timeout"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`

	// Policy
	Fare         int64 `yaml:"fare"`
	MaxTopUp     int64 `yaml:"max_topup"` // 0 = no cap
	RecordDenied bool  `yaml:"record_denied"`

	// Serial
	EntrancePort      string        `yaml:"entrance_port"`
	ExitPort          string        `yaml:"exit_port"`
	TopUpPort         string        `yaml:"topup_port"`
	BaudRate          int           `yaml:"baud_rate"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"` // 0 = stay offline after a fault
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	AutoCloseDelay    time.Duration `yaml:"auto_close_delay"`

	StatusFile        string `yaml:"status_file"`
	OperatorTokenHash string `yaml:"operator_token_hash"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:       ":8080",
		GRPCAddr:       ":9090",
		Env:            "dev",
		DBPath:         "./data/tollgate.db",
		LedgerBackend:  BackendSQLite,
		RedisPrefix:    "rfid:",
		LedgerTimeout:  3 * time.Second,
		LockTimeout:    2 * time.Second,
		Fare:           50,
		BaudRate:       9600,
		ReconnectDelay: 5 * time.Second,
		AutoCloseDelay: 3 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// FromEnv returns defaults overridden by TOLLGATE_* variables.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// Load applies defaults, then the YAML file at path (if any), then the
// environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenvDefault("TOLLGATE_HTTP_ADDR", cfg.HTTPAddr)
	if v, ok := os.LookupEnv("TOLLGATE_GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	if origins := splitCSV(os.Getenv("TOLLGATE_CORS_ORIGINS")); origins != nil {
		cfg.CORSOrigins = origins
	}

	cfg.Env = strings.ToLower(getenvDefault("TOLLGATE_ENV", cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	cfg.DBPath = getenvDefault("TOLLGATE_DB_PATH", cfg.DBPath)

	cfg.LedgerBackend = strings.ToLower(getenvDefault("TOLLGATE_LEDGER", cfg.LedgerBackend))
	cfg.RedisURL = getenvDefault("TOLLGATE_REDIS_URL", cfg.RedisURL)
	cfg.RedisPrefix = getenvDefault("TOLLGATE_REDIS_PREFIX", cfg.RedisPrefix)
	cfg.PostgresURL = getenvDefault("TOLLGATE_POSTGRES_URL", cfg.PostgresURL)
	cfg.LedgerTimeout = getenvDuration("TOLLGATE_LEDGER_TIMEOUT", cfg.LedgerTimeout)
	cfg.LockTimeout = getenvDuration("TOLLGATE_LOCK_TIMEOUT", cfg.LockTimeout)

	cfg.Fare = int64(getenvInt("TOLLGATE_FARE", int(cfg.Fare)))
	cfg.MaxTopUp = int64(getenvInt("TOLLGATE_MAX_TOPUP", int(cfg.MaxTopUp)))
	cfg.RecordDenied = getenvBool("TOLLGATE_RECORD_DENIED", cfg.RecordDenied)

	cfg.EntrancePort = getenvDefault("TOLLGATE_ENTRANCE_PORT", cfg.EntrancePort)
	cfg.ExitPort = getenvDefault("TOLLGATE_EXIT_PORT", cfg.ExitPort)
	cfg.TopUpPort = getenvDefault("TOLLGATE_TOPUP_PORT", cfg.TopUpPort)
	cfg.BaudRate = getenvInt("TOLLGATE_BAUD_RATE", cfg.BaudRate)
	cfg.ReconnectAttempts = getenvInt("TOLLGATE_RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
	cfg.ReconnectDelay = getenvDuration("TOLLGATE_RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.AutoCloseDelay = getenvDuration("TOLLGATE_AUTO_CLOSE_DELAY", cfg.AutoCloseDelay)

	cfg.StatusFile = getenvDefault("TOLLGATE_STATUS_FILE", cfg.StatusFile)
	cfg.OperatorTokenHash = getenvDefault("TOLLGATE_OPERATOR_TOKEN_HASH", cfg.OperatorTokenHash)

	cfg.LogLevel = getenvDefault("TOLLGATE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenvDefault("TOLLGATE_LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getenvDefault("TOLLGATE_LOG_FILE", cfg.LogFile)
}

func (c Config) Validate() error {
	switch c.LedgerBackend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("ledger backend redis requires TOLLGATE_REDIS_URL")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("ledger backend postgres requires TOLLGATE_POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.LedgerBackend)
	}
	if c.Fare < 0 {
		return fmt.Errorf("fare must not be negative")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
