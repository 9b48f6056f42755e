package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	DefaultTenant string        `mapstructure:"default_tenant"`
	AllowOrigins  []string      `mapstructure:"allow_origins"`
}

// DatabaseConfig holds document store configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds principal resolution configuration
type AuthConfig struct {
	// JWTSecret enables the Bearer-token fallback when set; the
	// client-principal header is always honored.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// BudgetConfig holds budget evaluation configuration
type BudgetConfig struct {
	DefaultLimit float64 `mapstructure:"default_limit"`
}

// OCRConfig holds receipt analysis configuration
type OCRConfig struct {
	// Provider selects the analyzer: "docintel" or "openai".
	Provider string `mapstructure:"provider"`

	DocIntelEndpoint string        `mapstructure:"docintel_endpoint"`
	DocIntelKey      string        `mapstructure:"docintel_key"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxPolls         int           `mapstructure:"max_polls"`

	OpenAIKey   string `mapstructure:"openai_api_key"`
	OpenAIModel string `mapstructure:"openai_model"`
}

// StorageConfig holds receipt blob storage configuration
type StorageConfig struct {
	// Mode is "azure" or "local".
	Mode string        `mapstructure:"mode"`
	TTL  time.Duration `mapstructure:"url_ttl"`

	Account   string `mapstructure:"account"`
	Container string `mapstructure:"container"`
	AccessKey string `mapstructure:"access_key"`

	LocalDir    string `mapstructure:"local_dir"`
	BaseURL     string `mapstructure:"base_url"`
	LocalSecret string `mapstructure:"local_secret"`
}

// LarkConfig holds review notification configuration
type LarkConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	ReviewChatID string `mapstructure:"review_chat_id"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	ReminderEnabled  bool          `mapstructure:"reminder_enabled"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	ReminderStale    time.Duration `mapstructure:"reminder_stale"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)
	viper.SetDefault("server.default_tenant", "default")

	// Database defaults
	viper.SetDefault("database.path", "data/fieldops.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Budget defaults
	viper.SetDefault("budget.default_limit", 1000.0)

	// OCR defaults
	viper.SetDefault("ocr.provider", "docintel")
	viper.SetDefault("ocr.poll_interval", time.Second)
	viper.SetDefault("ocr.max_polls", 30)
	viper.SetDefault("ocr.openai_model", "gpt-4o")

	// Storage defaults
	viper.SetDefault("storage.mode", "local")
	viper.SetDefault("storage.url_ttl", 15*time.Minute)
	viper.SetDefault("storage.local_dir", "data/blobs")
	viper.SetDefault("storage.base_url", "http://localhost:8080")

	// Worker defaults
	viper.SetDefault("worker.reminder_enabled", false)
	viper.SetDefault("worker.reminder_interval", 10*time.Minute)
	viper.SetDefault("worker.reminder_stale", 24*time.Hour)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("ocr.docintel_endpoint", "DOCINTEL_ENDPOINT")
	viper.BindEnv("ocr.docintel_key", "DOCINTEL_KEY")
	viper.BindEnv("ocr.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("storage.account", "STORAGE_ACCOUNT")
	viper.BindEnv("storage.container", "STORAGE_CONTAINER")
	viper.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	viper.BindEnv("storage.local_secret", "STORAGE_LOCAL_SECRET")
	viper.BindEnv("lark.app_id", "LARK_APP_ID")
	viper.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	viper.BindEnv("lark.review_chat_id", "LARK_REVIEW_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Budget.DefaultLimit < 0 {
		return fmt.Errorf("budget.default_limit must not be negative")
	}

	switch c.OCR.Provider {
	case "docintel":
		if c.OCR.DocIntelEndpoint == "" {
			return fmt.Errorf("ocr.docintel_endpoint is required")
		}
		if c.OCR.DocIntelKey == "" {
			return fmt.Errorf("ocr.docintel_key is required")
		}
	case "openai":
		if c.OCR.OpenAIKey == "" {
			return fmt.Errorf("ocr.openai_api_key is required")
		}
	default:
		return fmt.Errorf("ocr.provider must be docintel or openai")
	}

	switch c.Storage.Mode {
	case "azure":
		if c.Storage.Account == "" || c.Storage.Container == "" || c.Storage.AccessKey == "" {
			return fmt.Errorf("storage.account, storage.container and storage.access_key are required in azure mode")
		}
	case "local":
		if c.Storage.LocalSecret == "" {
			return fmt.Errorf("storage.local_secret is required in local mode")
		}
	default:
		return fmt.Errorf("storage.mode must be azure or local")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
		}
		if c.Lark.ReviewChatID == "" {
			return fmt.Errorf("lark.review_chat_id is required when lark is enabled")
		}
	}

	return nil
}
