package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Storage    StorageConfig
	S3         S3Config
	GCS        GCSConfig
	Repository RepositoryConfig
	Firestore  FirestoreConfig
	Log        LogConfig
	CORS       CORSConfig
	Compare    CompareConfig
	Battle     BattleConfig
	Pricing    PricingConfig
	Providers  map[string]*ProviderConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StorageConfig selects where uploaded documents are kept.
type StorageConfig struct {
	Driver       string `mapstructure:"driver"`
	LocalDir     string `mapstructure:"local_dir"`
	BattlePrefix string `mapstructure:"battle_prefix"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// RepositoryConfig selects the battle record store.
type RepositoryConfig struct {
	Driver string `mapstructure:"driver"`
}

// FirestoreConfig holds Firestore settings for the firestore repository driver.
type FirestoreConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	BattleCollection   string `mapstructure:"battle_collection"`
	FeedbackCollection string `mapstructure:"feedback_collection"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CompareConfig holds fan-out settings.
type CompareConfig struct {
	UploadDir          string `mapstructure:"upload_dir"`
	FailurePolicy      string `mapstructure:"failure_policy"`
	DefaultTimeoutSecs int    `mapstructure:"default_timeout_secs"`
	MaxFileSizeMB      int64  `mapstructure:"max_file_size_mb"`
}

// BattleConfig holds blind battle settings.
type BattleConfig struct {
	DefaultProviders   []string      `mapstructure:"default_providers"`
	FeedbackWait       time.Duration `mapstructure:"feedback_wait"`
	PersistenceTimeout time.Duration `mapstructure:"persistence_timeout"`
}

// PricingConfig points at the YAML pricing table.
type PricingConfig struct {
	Path string `mapstructure:"path"`
}

// ProviderConfig holds settings for one parsing backend.
type ProviderConfig struct {
	Provider    string         `mapstructure:"provider"`
	APIKey      string         `mapstructure:"api_key"`
	BaseURL     string         `mapstructure:"base_url"`
	TimeoutSecs int            `mapstructure:"timeout_secs"`
	Options     map[string]any `mapstructure:"options"`
}

// WithOverrides returns a copy of p whose options are overlaid with overrides.
// The credential and endpoint fields are never overridden per request.
func (p *ProviderConfig) WithOverrides(overrides map[string]any) *ProviderConfig {
	merged := make(map[string]any, len(p.Options)+len(overrides))
	for k, v := range p.Options {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	cp := *p
	cp.Options = merged
	return &cp
}

// providerDefaults lists per-provider option keys and their defaults.
var providerDefaults = map[string]map[string]any{
	"llamaindex": {
		"parse_mode": "parse_page_with_agent",
		"model":      "openai-gpt-4-1-mini",
	},
	"reducto": {
		"mode":              "standard",
		"summarize_figures": false,
	},
	"unstructured": {
		"strategy":           "auto",
		"table_format":       "html",
		"vlm_model":          "",
		"vlm_model_provider": "",
	},
	"extendai": {
		"agentic_ocr": false,
	},
}

var providerBaseURLs = map[string]string{
	"llamaindex":   "https://api.cloud.llamaindex.ai",
	"reducto":      "https://platform.reducto.ai",
	"unstructured": "https://api.unstructuredapp.io",
	"extendai":     "https://api.extend.ai",
}

// Load reads configuration from environment variables with the RAGRACE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAGRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "ragrace")
	v.SetDefault("db.password", "ragrace_secret")
	v.SetDefault("db.name", "ragrace_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// Storage defaults
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "data/storage")
	v.SetDefault("storage.battle_prefix", "user-upload")

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "ragrace-uploads")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.public_base_url", "https://storage.googleapis.com")

	v.SetDefault("repository.driver", "memory")
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.battle_collection", "parse_battles")
	v.SetDefault("firestore.feedback_collection", "battle_feedback")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173")

	// Compare and battle defaults
	v.SetDefault("compare.upload_dir", "data/uploads")
	v.SetDefault("compare.failure_policy", "all_or_nothing")
	v.SetDefault("compare.default_timeout_secs", 300)
	v.SetDefault("compare.max_file_size_mb", 50)
	v.SetDefault("battle.default_providers", "llamaindex,reducto")
	v.SetDefault("battle.feedback_wait", "5s")
	v.SetDefault("battle.persistence_timeout", "5m")
	v.SetDefault("pricing.path", "config/pricing.yaml")

	for name, opts := range providerDefaults {
		v.SetDefault("providers."+name+".api_key", "")
		v.SetDefault("providers."+name+".base_url", providerBaseURLs[name])
		v.SetDefault("providers."+name+".timeout_secs", 0)
		for key, def := range opts {
			v.SetDefault("providers."+name+"."+key, def)
		}
	}

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                   "RAGRACE_SERVER_PORT",
		"server.read_timeout":           "RAGRACE_SERVER_READ_TIMEOUT",
		"server.write_timeout":          "RAGRACE_SERVER_WRITE_TIMEOUT",
		"server.environment":            "RAGRACE_SERVER_ENVIRONMENT",
		"db.host":                       "RAGRACE_DB_HOST",
		"db.port":                       "RAGRACE_DB_PORT",
		"db.user":                       "RAGRACE_DB_USER",
		"db.password":                   "RAGRACE_DB_PASSWORD",
		"db.name":                       "RAGRACE_DB_NAME",
		"db.sslmode":                    "RAGRACE_DB_SSLMODE",
		"db.max_open":                   "RAGRACE_DB_MAX_OPEN",
		"db.max_idle":                   "RAGRACE_DB_MAX_IDLE",
		"storage.driver":                "RAGRACE_STORAGE_DRIVER",
		"storage.local_dir":             "RAGRACE_STORAGE_LOCAL_DIR",
		"storage.battle_prefix":         "RAGRACE_STORAGE_BATTLE_PREFIX",
		"s3.region":                     "RAGRACE_S3_REGION",
		"s3.bucket":                     "RAGRACE_S3_BUCKET",
		"s3.endpoint":                   "RAGRACE_S3_ENDPOINT",
		"s3.access_key":                 "RAGRACE_S3_ACCESS_KEY",
		"s3.secret_key":                 "RAGRACE_S3_SECRET_KEY",
		"s3.presign_expiry":             "RAGRACE_S3_PRESIGN_EXPIRY",
		"gcs.bucket":                    "RAGRACE_GCS_BUCKET",
		"gcs.public_base_url":           "RAGRACE_GCS_PUBLIC_BASE_URL",
		"repository.driver":             "RAGRACE_REPOSITORY_DRIVER",
		"firestore.project_id":          "RAGRACE_FIRESTORE_PROJECT_ID",
		"firestore.battle_collection":   "RAGRACE_FIRESTORE_BATTLE_COLLECTION",
		"firestore.feedback_collection": "RAGRACE_FIRESTORE_FEEDBACK_COLLECTION",
		"log.level":                     "RAGRACE_LOG_LEVEL",
		"log.format":                    "RAGRACE_LOG_FORMAT",
		"cors.allowed_origins":          "RAGRACE_CORS_ALLOWED_ORIGINS",
		"compare.upload_dir":            "RAGRACE_COMPARE_UPLOAD_DIR",
		"compare.failure_policy":        "RAGRACE_COMPARE_FAILURE_POLICY",
		"compare.default_timeout_secs":  "RAGRACE_COMPARE_DEFAULT_TIMEOUT_SECS",
		"compare.max_file_size_mb":      "RAGRACE_COMPARE_MAX_FILE_SIZE_MB",
		"battle.default_providers":      "RAGRACE_BATTLE_DEFAULT_PROVIDERS",
		"battle.feedback_wait":          "RAGRACE_BATTLE_FEEDBACK_WAIT",
		"battle.persistence_timeout":    "RAGRACE_BATTLE_PERSISTENCE_TIMEOUT",
		"pricing.path":                  "RAGRACE_PRICING_PATH",
	}
	for name, opts := range providerDefaults {
		prefix := "RAGRACE_PROVIDERS_" + strings.ToUpper(name) + "_"
		envBindings["providers."+name+".api_key"] = prefix + "API_KEY"
		envBindings["providers."+name+".base_url"] = prefix + "BASE_URL"
		envBindings["providers."+name+".timeout_secs"] = prefix + "TIMEOUT_SECS"
		for key := range opts {
			envBindings["providers."+name+"."+key] = prefix + strings.ToUpper(key)
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it if RAGRACE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("RAGRACE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Storage = StorageConfig{
		Driver:       v.GetString("storage.driver"),
		LocalDir:     v.GetString("storage.local_dir"),
		BattlePrefix: v.GetString("storage.battle_prefix"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.GCS = GCSConfig{
		Bucket:        v.GetString("gcs.bucket"),
		PublicBaseURL: v.GetString("gcs.public_base_url"),
	}
	cfg.Repository = RepositoryConfig{
		Driver: v.GetString("repository.driver"),
	}
	cfg.Firestore = FirestoreConfig{
		ProjectID:          v.GetString("firestore.project_id"),
		BattleCollection:   v.GetString("firestore.battle_collection"),
		FeedbackCollection: v.GetString("firestore.feedback_collection"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.Compare = CompareConfig{
		UploadDir:          v.GetString("compare.upload_dir"),
		FailurePolicy:      v.GetString("compare.failure_policy"),
		DefaultTimeoutSecs: v.GetInt("compare.default_timeout_secs"),
		MaxFileSizeMB:      v.GetInt64("compare.max_file_size_mb"),
	}
	cfg.Battle = BattleConfig{
		DefaultProviders:   splitList(v.GetString("battle.default_providers")),
		FeedbackWait:       v.GetDuration("battle.feedback_wait"),
		PersistenceTimeout: v.GetDuration("battle.persistence_timeout"),
	}
	cfg.Pricing = PricingConfig{
		Path: v.GetString("pricing.path"),
	}

	switch cfg.Compare.FailurePolicy {
	case "all_or_nothing", "partial":
	default:
		return nil, fmt.Errorf("invalid compare.failure_policy %q", cfg.Compare.FailurePolicy)
	}

	cfg.Providers = make(map[string]*ProviderConfig, len(providerDefaults))
	for name, opts := range providerDefaults {
		timeout := v.GetInt("providers." + name + ".timeout_secs")
		if timeout <= 0 {
			timeout = cfg.Compare.DefaultTimeoutSecs
		}
		options := make(map[string]any, len(opts))
		for key := range opts {
			options[key] = v.Get("providers." + name + "." + key)
		}
		cfg.Providers[name] = &ProviderConfig{
			Provider:    name,
			APIKey:      v.GetString("providers." + name + ".api_key"),
			BaseURL:     v.GetString("providers." + name + ".base_url"),
			TimeoutSecs: timeout,
			Options:     options,
		}
	}

	return cfg, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
