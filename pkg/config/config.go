package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Import      ImportConfig
	Payslips    PayslipConfig
	ActivityLog ActivityLogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ImportConfig governs the bulk employee import flow.
type ImportConfig struct {
	MatriculaWidth int
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

// PayslipConfig governs batch payslip ingestion and file storage.
type PayslipConfig struct {
	StorageDir      string
	Extensions      []string
	MaxFileBytes    int64
	MaxBatchFiles   int
	StagingTTL      time.Duration
	CleanupInterval time.Duration
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// ActivityLogConfig sizes the asynchronous activity log writer.
type ActivityLogConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	width := v.GetInt("MATRICULA_WIDTH")
	if width <= 0 {
		width = 6
	}
	maxUpload := v.GetInt64("IMPORT_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Import = ImportConfig{
		MatriculaWidth: width,
		MaxUploadBytes: maxUpload,
		SessionTTL:     parseDuration(v.GetString("IMPORT_SESSION_TTL"), 30*time.Minute),
	}

	maxPayslip := v.GetInt64("PAYSLIPS_MAX_FILE_BYTES")
	if maxPayslip <= 0 {
		maxPayslip = 5 * 1024 * 1024
	}
	cfg.Payslips = PayslipConfig{
		StorageDir:      v.GetString("PAYSLIPS_STORAGE_DIR"),
		Extensions:      splitAndTrim(v.GetString("PAYSLIPS_ALLOWED_EXTENSIONS")),
		MaxFileBytes:    maxPayslip,
		MaxBatchFiles:   v.GetInt("PAYSLIPS_MAX_BATCH_FILES"),
		StagingTTL:      parseDuration(v.GetString("PAYSLIPS_STAGING_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("PAYSLIPS_CLEANUP_INTERVAL"), 15*time.Minute),
		SignedURLSecret: v.GetString("PAYSLIPS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("PAYSLIPS_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.ActivityLog = ActivityLogConfig{
		Workers:    v.GetInt("ACTIVITY_LOG_WORKERS"),
		BufferSize: v.GetInt("ACTIVITY_LOG_BUFFER"),
		MaxRetries: v.GetInt("ACTIVITY_LOG_RETRIES"),
		RetryDelay: parseDuration(v.GetString("ACTIVITY_LOG_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hr_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "hr-admin-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MATRICULA_WIDTH", 6)
	v.SetDefault("IMPORT_MAX_UPLOAD_BYTES", 10*1024*1024)
	v.SetDefault("IMPORT_SESSION_TTL", "30m")

	v.SetDefault("PAYSLIPS_STORAGE_DIR", "./payslips")
	v.SetDefault("PAYSLIPS_ALLOWED_EXTENSIONS", "pdf")
	v.SetDefault("PAYSLIPS_MAX_FILE_BYTES", 5*1024*1024)
	v.SetDefault("PAYSLIPS_MAX_BATCH_FILES", 500)
	v.SetDefault("PAYSLIPS_STAGING_TTL", "1h")
	v.SetDefault("PAYSLIPS_CLEANUP_INTERVAL", "15m")
	v.SetDefault("PAYSLIPS_SIGNED_URL_SECRET", "dev_payslips_secret")
	v.SetDefault("PAYSLIPS_SIGNED_URL_TTL", "15m")

	v.SetDefault("ACTIVITY_LOG_WORKERS", 2)
	v.SetDefault("ACTIVITY_LOG_BUFFER", 64)
	v.SetDefault("ACTIVITY_LOG_RETRIES", 3)
	v.SetDefault("ACTIVITY_LOG_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
