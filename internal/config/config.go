package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers understood by the repository layer.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AI providers understood by the generator adapter.
const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr              string        `mapstructure:"addr"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		CORSOrigins       []string      `mapstructure:"cors_origins"`
	} `mapstructure:"server"`
	DB struct {
		URL      string `mapstructure:"url"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	AI struct {
		Provider string        `mapstructure:"provider"`
		APIKey   string        `mapstructure:"api_key"`
		Model    string        `mapstructure:"model"`
		BaseURL  string        `mapstructure:"base_url"`
		Region   string        `mapstructure:"region"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Breaker  struct {
			MaxFailures uint32        `mapstructure:"max_failures"`
			Timeout     time.Duration `mapstructure:"timeout"`
		} `mapstructure:"breaker"`
	} `mapstructure:"ai"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"log"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	// Source is the config file that was read, empty when running on
	// defaults and environment only.
	Source string `mapstructure:"-"`
}

// LoadConfig loads the configuration from a file and the environment. An
// empty path searches ./config.yaml and ./config/config.yaml; a missing file
// is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PROMPTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.Source = v.ConfigFileUsed()

	if port := v.GetString("port"); port != "" && config.Server.Addr == ":8080" {
		config.Server.Addr = ":" + port
	}
	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))
	config.AI.BaseURL = strings.TrimRight(strings.TrimSpace(config.AI.BaseURL), "/")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.heartbeat_interval", 20*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("db.url", "sqlite://./workflows.db")
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.region", "us-east-1")
	v.SetDefault("ai.timeout", time.Duration(0))
	v.SetDefault("ai.breaker.max_failures", 5)
	v.SetDefault("ai.breaker.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})
}

// bindLegacyEnv maps the unprefixed variables used by common PaaS setups.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("db.url", "PROMPTFLOW_DB_URL", "DATABASE_URL")
	_ = v.BindEnv("ai.api_key", "PROMPTFLOW_AI_API_KEY", "GEMINI_API_KEY", "AI_API_KEY")
	_ = v.BindEnv("ai.model", "PROMPTFLOW_AI_MODEL", "AI_MODEL", "GEMINI_MODEL")
	_ = v.BindEnv("ai.provider", "PROMPTFLOW_AI_PROVIDER", "AI_PROVIDER")
	_ = v.BindEnv("port", "PORT")
}

// Database resolves the configured store into a driver name and a
// driver-specific data source name.
func (c *Config) Database() (driver, dsn string, err error) {
	raw := strings.TrimSpace(c.DB.URL)
	if raw == "" && c.DB.Host != "" {
		return DriverPostgres, fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
		), nil
	}
	if raw == "" {
		raw = "sqlite://./workflows.db"
	}
	return ParseDatabaseURL(raw)
}

// ParseDatabaseURL maps a connection string onto a driver. Postgres URLs are
// passed through; sqlite:// URLs and bare paths become a file path.
func ParseDatabaseURL(raw string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		if _, err := url.Parse(raw); err != nil {
			return "", "", fmt.Errorf("invalid database url: %w", err)
		}
		return DriverPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite:///"):
		// sqlite:///./x.db and sqlite:////abs/x.db follow the SQLAlchemy form.
		return DriverSQLite, strings.TrimPrefix(raw, "sqlite:///"), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(raw, "sqlite://"), nil
	case strings.HasPrefix(raw, "file:"):
		return DriverSQLite, strings.TrimPrefix(raw, "file:"), nil
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme: %q", raw)
	default:
		return DriverSQLite, raw, nil
	}
}

// AIEnabled reports whether the configured provider has what it needs to
// make real calls.
func (c *Config) AIEnabled() bool {
	if c.AI.Model == "" {
		return false
	}
	switch c.AI.Provider {
	case ProviderBedrock:
		return true
	default:
		return c.AI.APIKey != ""
	}
}
