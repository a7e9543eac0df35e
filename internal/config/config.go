package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/trackmeet/core/pkg/jobs"
	"github.com/trackmeet/core/pkg/logger"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Federation  FederationConfig
	Jobs        JobsConfig
	StoreDriver string
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type FederationConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	RequestsPerMin  int
	RetryCount      int
	BreakerFailures int
	BreakerTimeout  time.Duration
	ClubCacheTTL    time.Duration
	// FixtureMode serves the embedded roster instead of calling the federation
	FixtureMode        bool
	DefaultClubCountry string
}

type JobsConfig struct {
	AthleteSync jobs.JobConfig
	LogCleanup  jobs.JobConfig
	DaysToKeep  int
	// LogDeleteWarnAbove is the deleted-row count above which cleanup warns; 0 disables
	LogDeleteWarnAbove int64
}

// Load reads configuration from the environment. A .env file in the working
// directory, or the file named by ENV_FILE, is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	loadDotEnv()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "trackmeet"),
			Password: getEnv("DB_PASSWORD", "trackmeet"),
			DBName:   getEnv("DB_NAME", "trackmeet_core"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		Federation: FederationConfig{
			BaseURL:            getEnv("FEDERATION_API_URL", ""),
			APIKey:             getEnv("FEDERATION_API_KEY", ""),
			Timeout:            getEnvAsDuration("FEDERATION_API_TIMEOUT", 30*time.Second),
			RequestsPerMin:     getEnvAsInt("FEDERATION_REQUESTS_PER_MIN", 60),
			RetryCount:         getEnvAsInt("FEDERATION_RETRY_COUNT", 2),
			BreakerFailures:    getEnvAsInt("FEDERATION_BREAKER_FAILURES", 5),
			BreakerTimeout:     getEnvAsDuration("FEDERATION_BREAKER_TIMEOUT", time.Minute),
			ClubCacheTTL:       getEnvAsDuration("FEDERATION_CLUB_CACHE_TTL", time.Hour),
			FixtureMode:        getEnvAsBool("FEDERATION_FIXTURE_MODE", false),
			DefaultClubCountry: getEnv("DEFAULT_CLUB_COUNTRY", "UNK"),
		},
		Jobs: JobsConfig{
			AthleteSync: jobs.JobConfig{
				Enabled:    getEnvAsBool("ATHLETE_SYNC_ENABLED", true),
				Schedule:   getEnv("ATHLETE_SYNC_SCHEDULE", jobs.ScheduleDaily),
				RunOnStart: getEnvAsBool("ATHLETE_SYNC_RUN_ON_START", false),
			},
			LogCleanup: jobs.JobConfig{
				Enabled:    getEnvAsBool("LOG_CLEANUP_ENABLED", true),
				Schedule:   getEnv("LOG_CLEANUP_SCHEDULE", jobs.ScheduleDaily),
				RunOnStart: getEnvAsBool("LOG_CLEANUP_RUN_ON_START", false),
			},
			DaysToKeep:         getEnvAsInt("LOG_DAYS_TO_KEEP", jobs.DefaultDaysToKeep),
			LogDeleteWarnAbove: int64(getEnvAsInt("LOG_DELETE_WARN_ABOVE", 100000)),
		},
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
	}
}

// Validate rejects settings the process cannot run with and warns about
// schedule tokens the scheduler will treat as daily
func (c *Config) Validate(log *logger.Logger) error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: must be %s or %s", c.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	if c.Jobs.DaysToKeep < 1 {
		return fmt.Errorf("LOG_DAYS_TO_KEEP must be at least 1, got %d", c.Jobs.DaysToKeep)
	}

	if !c.Federation.FixtureMode && c.Federation.BaseURL == "" {
		return fmt.Errorf("FEDERATION_API_URL is required unless FEDERATION_FIXTURE_MODE is set")
	}

	schedules := map[string]string{
		"athlete_sync": c.Jobs.AthleteSync.Schedule,
		"log_cleanup":  c.Jobs.LogCleanup.Schedule,
	}
	for job, schedule := range schedules {
		if !jobs.IsKnownInterval(schedule) && log != nil {
			log.Warn().
				Str("action", "config_unknown_schedule").
				Str("job_name", job).
				Str("schedule", schedule).
				Msg("Unknown schedule token, job will run daily")
		}
	}
	return nil
}

func loadDotEnv() {
	path := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	// Load never overrides variables that are already set
	_ = godotenv.Load(path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}
