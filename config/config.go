package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"offertpilot/models"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type OpenAIConfig struct {
	APIKey  string        `json:"-"`
	Model   string        `json:"model"`
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

type SMTPConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Username        string `json:"username"`
	Password        string `json:"-"`
	MaxRetries      int    `json:"max_retries"`
	MessageIDDomain string `json:"message_id_domain"`
}

type IMAPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Username     string        `json:"username"`
	Password     string        `json:"-"`
	Mailbox      string        `json:"mailbox"`
	PollInterval time.Duration `json:"poll_interval"`
}

type SchedulerConfig struct {
	Interval  time.Duration `json:"interval"`
	Workers   int           `json:"workers"`
	BatchSize int           `json:"batch_size"`
	LockTTL   time.Duration `json:"lock_ttl"`
}

type Config struct {
	Environment        string          `json:"environment"`
	ServerPort         string          `json:"server_port"`
	AllowedOrigins     []string        `json:"allowed_origins"`
	InboundEmailDomain string          `json:"inbound_email_domain"`
	SentryDSN          string          `json:"-"`
	DBHost             string          `json:"db_host"`
	DBPort             string          `json:"db_port"`
	DBUser             string          `json:"db_user"`
	DBPassword         string          `json:"-"`
	DBName             string          `json:"db_name"`
	DBSSLMode          string          `json:"db_ssl_mode"`
	DBMaxIdleConns     int             `json:"db_max_idle_conns"`
	DBMaxOpenConns     int             `json:"db_max_open_conns"`
	CronSecret         string          `json:"-"`
	InboundSecret      string          `json:"-"`
	JWTSecret          string          `json:"-"`
	WebhookRateLimit   int             `json:"webhook_rate_limit"`
	OpenAI             OpenAIConfig    `json:"openai"`
	SMTP               SMTPConfig      `json:"smtp"`
	IMAP               IMAPConfig      `json:"imap"`
	Redis              RedisConfig     `json:"redis"`
	Scheduler          SchedulerConfig `json:"scheduler"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() error {
	cfg := Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         getEnv("SERVER_PORT", "5000"),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		InboundEmailDomain: getEnv("INBOUND_EMAIL_DOMAIN", "inbound.offertpilot.se"),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", ""),
		DBName:             getEnv("DB_NAME", "offertpilot"),
		DBSSLMode:          getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		CronSecret:         getEnv("CRON_SECRET", ""),
		InboundSecret:      getEnv("EMAIL_INBOUND_WEBHOOK_SECRET", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		WebhookRateLimit:   getEnvAsInt("WEBHOOK_RATE_LIMIT", 120),
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		SMTP: SMTPConfig{
			Host:            getEnv("SMTP_HOST", ""),
			Port:            getEnvAsInt("SMTP_PORT", 587),
			Username:        getEnv("SMTP_USERNAME", ""),
			Password:        getEnv("SMTP_PASSWORD", ""),
			MaxRetries:      getEnvAsInt("SMTP_MAX_RETRIES", 3),
			MessageIDDomain: getEnv("MESSAGE_ID_DOMAIN", ""),
		},
		IMAP: IMAPConfig{
			Host:         getEnv("IMAP_HOST", ""),
			Port:         getEnvAsInt("IMAP_PORT", 993),
			Username:     getEnv("IMAP_USERNAME", ""),
			Password:     getEnv("IMAP_PASSWORD", ""),
			Mailbox:      getEnv("IMAP_MAILBOX", "INBOX"),
			PollInterval: getEnvAsDuration("IMAP_POLL_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			Interval:  getEnvAsDuration("SCHEDULER_INTERVAL", 0),
			Workers:   getEnvAsInt("SCHEDULER_WORKERS", 4),
			BatchSize: getEnvAsInt("SCHEDULER_BATCH_SIZE", 500),
			LockTTL:   getEnvAsDuration("LEAD_LOCK_TTL", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return err
	}
	if !cfg.IsProduction() && cfg.CronSecret == "" {
		cfg.CronSecret = "dev-secret"
	}

	AppConfig = cfg
	logConfig()
	return nil
}

func (c Config) validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if c.CronSecret == "" {
			return fmt.Errorf("CRON_SECRET is required in production")
		}
		if c.InboundSecret == "" {
			return fmt.Errorf("EMAIL_INBOUND_WEBHOOK_SECRET is required in production")
		}
	}
	return nil
}

func ConnectDB() error {
	log := logrus.WithField("component", "database")
	log.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

	gormLogger := logger.Default.LogMode(logger.Warn)
	if AppConfig.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("Successfully connected to the database")

	if err := models.Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":     AppConfig.Environment,
		"server_port":     AppConfig.ServerPort,
		"database":        fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":           AppConfig.Redis.Enabled,
		"smtp":            AppConfig.SMTP.Host != "",
		"imap":            AppConfig.IMAP.Host != "",
		"ai_enhancement":  AppConfig.OpenAI.APIKey != "",
		"scheduler_every": AppConfig.Scheduler.Interval.String(),
	}).Info("Loaded configuration")
}
