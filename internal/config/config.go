package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/accountops/account-deletion/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Deletion     DeletionConfig
	Worker       WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// ConnectedProviders lists the third-party identity providers whose state
	// must be cleared when a credential is removed.
	ConnectedProviders []string
}

// NotificationConfig holds mail delivery settings. An empty SMTPHost selects
// the logging mailer.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	BoardTitle   string
}

// DeletionConfig mirrors the administrator-controlled deletion options.
type DeletionConfig struct {
	Mode              string
	CoolingOffDays    int
	ReminderLeadDays  int
	RandomiseUsername bool
	DeletedUserPrefix string

	DisableRemoveEmail     bool
	DisableBanEmail        bool
	DisableRemovePassword  bool
	DisableDisabledGroupID int

	DeleteBanEmail bool
}

// WorkerConfig tunes the background job runner.
type WorkerConfig struct {
	Enabled          bool
	PollInterval     time.Duration
	BatchSize        int
	MaxAttempts      int
	RetryBackoff     time.Duration
	Lease            time.Duration
	LockTTL          time.Duration
	LockWaitInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "account-deletion-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 0),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Encoding:    getEnv("LOG_ENCODING", "json"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			ConnectedProviders:    getEnvAsList("AUTH_CONNECTED_PROVIDERS", []string{"google", "github"}),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:     os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:     getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUsername: os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword: os.Getenv("NOTIFY_SMTP_PASSWORD"),
			BoardTitle:   getEnv("NOTIFY_BOARD_TITLE", "Community"),
		},
		Deletion: DeletionConfig{
			Mode:                   getEnv("DELETION_MODE", string(domain.DeletionModeDisable)),
			CoolingOffDays:         getEnvAsInt("DELETION_COOLING_OFF_DAYS", 7),
			ReminderLeadDays:       getEnvAsInt("DELETION_REMINDER_LEAD_DAYS", 1),
			RandomiseUsername:      getEnvAsBool("DELETION_RANDOMISE_USERNAME", true),
			DeletedUserPrefix:      getEnv("DELETION_DELETED_USER_PREFIX", "DeletedMember"),
			DisableRemoveEmail:     getEnvAsBool("DELETION_DISABLE_REMOVE_EMAIL", true),
			DisableBanEmail:        getEnvAsBool("DELETION_DISABLE_BAN_EMAIL", false),
			DisableRemovePassword:  getEnvAsBool("DELETION_DISABLE_REMOVE_PASSWORD", true),
			DisableDisabledGroupID: getEnvAsInt("DELETION_DISABLE_GROUP_ID", 0),
			DeleteBanEmail:         getEnvAsBool("DELETION_DELETE_BAN_EMAIL", false),
		},
		Worker: WorkerConfig{
			Enabled:          getEnvAsBool("WORKER_ENABLED", true),
			PollInterval:     getEnvAsDuration("WORKER_POLL_INTERVAL", 5*time.Second),
			BatchSize:        getEnvAsInt("WORKER_BATCH_SIZE", 20),
			MaxAttempts:      getEnvAsInt("WORKER_MAX_ATTEMPTS", 10),
			RetryBackoff:     getEnvAsDuration("WORKER_RETRY_BACKOFF", 30*time.Second),
			Lease:            getEnvAsDuration("WORKER_LEASE", 5*time.Minute),
			LockTTL:          getEnvAsDuration("WORKER_LOCK_TTL", 2*time.Minute),
			LockWaitInterval: getEnvAsDuration("WORKER_LOCK_WAIT_INTERVAL", 50*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the deletion workflow cannot run with.
func (c *Config) Validate() error {
	if !domain.DeletionMode(c.Deletion.Mode).Valid() {
		return fmt.Errorf("invalid DELETION_MODE %q", c.Deletion.Mode)
	}
	if c.Deletion.CoolingOffDays < 0 {
		return fmt.Errorf("invalid DELETION_COOLING_OFF_DAYS: %d", c.Deletion.CoolingOffDays)
	}
	if c.Deletion.ReminderLeadDays < 0 {
		return fmt.Errorf("invalid DELETION_REMINDER_LEAD_DAYS: %d", c.Deletion.ReminderLeadDays)
	}
	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("invalid WORKER_BATCH_SIZE: %d", c.Worker.BatchSize)
	}
	return nil
}

// DeletionPolicy builds the policy value handed to the deletion service.
func (c *Config) DeletionPolicy() domain.DeletionPolicy {
	d := c.Deletion
	return domain.DeletionPolicy{
		Mode:              domain.DeletionMode(d.Mode),
		CoolingOff:        time.Duration(d.CoolingOffDays) * 24 * time.Hour,
		ReminderLead:      time.Duration(d.ReminderLeadDays) * 24 * time.Hour,
		RandomiseUsername: d.RandomiseUsername,
		Disable: domain.DisableOptions{
			RemoveEmail:     d.DisableRemoveEmail,
			BanEmail:        d.DisableBanEmail,
			RemovePassword:  d.DisableRemovePassword,
			DisabledGroupID: d.DisableDisabledGroupID,
		},
		Delete: domain.DeleteOptions{
			BanEmail: d.DeleteBanEmail,
		},
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
