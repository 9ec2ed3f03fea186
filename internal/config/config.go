package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Display    DisplayConfig    `mapstructure:"display"`
	Debounce   DebounceConfig   `mapstructure:"debounce"`
	Cache      CacheConfig      `mapstructure:"cache"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	// Driver selects the event store: "postgres" or "memory".
	Driver string `mapstructure:"driver"`
	// URL overrides the individual postgres settings when set.
	URL      string         `mapstructure:"url"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ExtractionConfig struct {
	Timezone string `mapstructure:"timezone"`
	// ReferenceDate pins the reference date (YYYY-MM-DD). Empty means today.
	ReferenceDate   string `mapstructure:"reference_date"`
	DefaultLocation string `mapstructure:"default_location"`
}

type OracleConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	ContextWindow int           `mapstructure:"context_window"`
}

type DisplayConfig struct {
	// Timezone defaults to the extraction timezone when empty.
	Timezone  string `mapstructure:"timezone"`
	ListLimit int    `mapstructure:"list_limit"`
}

type DebounceConfig struct {
	Window  time.Duration `mapstructure:"window"`
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	// Shards is the number of conversation shards in the deployment and
	// Shard the one this instance consumes. Each shard needs exactly one
	// running instance.
	Shards int `mapstructure:"shards"`
	Shard  int `mapstructure:"shard"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "announcer")
	v.SetDefault("database.postgres.user", "announcer")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "require")
	v.SetDefault("extraction.timezone", "America/Vancouver")
	v.SetDefault("extraction.reference_date", "")
	v.SetDefault("extraction.default_location", "Victoria, British Columbia, Canada")
	v.SetDefault("oracle.endpoint", "http://ollama:11434")
	v.SetDefault("oracle.model", "gemma3:4b-it-qat")
	v.SetDefault("oracle.timeout", "60s")
	v.SetDefault("oracle.max_tokens", 256)
	v.SetDefault("oracle.context_window", 4096)
	v.SetDefault("display.timezone", "")
	v.SetDefault("display.list_limit", 5)
	v.SetDefault("debounce.window", "3s")
	v.SetDefault("debounce.max_wait", "15s")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "announcer")
	v.SetDefault("nats.shards", 1)
	v.SetDefault("nats.shard", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/announcer")
	}

	// Environment variables override (ANNOUNCER_ORACLE_MODEL, etc.)
	v.SetEnvPrefix("ANNOUNCER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every setting that would make the service misbehave.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Extraction.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("extraction.timezone %q: %w", c.Extraction.Timezone, err))
	}
	if c.Display.Timezone != "" {
		if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("display.timezone %q: %w", c.Display.Timezone, err))
		}
	}
	if c.Extraction.ReferenceDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Extraction.ReferenceDate); err != nil {
			errs = append(errs, fmt.Errorf("extraction.reference_date %q must be YYYY-MM-DD", c.Extraction.ReferenceDate))
		}
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, errors.New("oracle.timeout must be positive"))
	}
	if c.Oracle.MaxTokens <= 0 {
		errs = append(errs, errors.New("oracle.max_tokens must be positive"))
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres or memory", c.Database.Driver))
	}
	if c.Debounce.Window <= 0 {
		errs = append(errs, errors.New("debounce.window must be positive"))
	}
	if c.Debounce.MaxWait < c.Debounce.Window {
		errs = append(errs, errors.New("debounce.max_wait must not be shorter than debounce.window"))
	}
	if c.NATS.Shards < 1 {
		errs = append(errs, errors.New("nats.shards must be at least 1"))
	} else if c.NATS.Shard < 0 || c.NATS.Shard >= c.NATS.Shards {
		errs = append(errs, fmt.Errorf("nats.shard %d must be in [0, %d)", c.NATS.Shard, c.NATS.Shards))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the timezone assumed for times without an offset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Extraction.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DisplayLocation returns the timezone listings are rendered in.
func (c *Config) DisplayLocation() *time.Location {
	if c.Display.Timezone == "" {
		return c.Location()
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return c.Location()
	}
	return loc
}

// ReferenceDate returns the configured reference date, or the date of now in
// the extraction timezone when none is pinned.
func (c *Config) ReferenceDate(now time.Time) time.Time {
	loc := c.Location()
	if c.Extraction.ReferenceDate != "" {
		if d, err := time.ParseInLocation(time.DateOnly, c.Extraction.ReferenceDate, loc); err == nil {
			return d
		}
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// PostgresDSN returns the connection string for the event store.
func (c *Config) PostgresDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	p := c.Database.Postgres
	user := url.User(p.User)
	if p.Password != "" {
		user = url.UserPassword(p.User, p.Password)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     p.Host + ":" + strconv.Itoa(p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}
