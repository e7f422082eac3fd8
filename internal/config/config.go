// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultAdminPassword = "admin123"

type RuntimeConfig struct {
	Dev bool
	// DefaultAdminPassword is set when no admin password was configured.
	DefaultAdminPassword bool
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`  // applies to JSON endpoints
	CloneTimeout    time.Duration `yaml:"clone_timeout"`    // applies to voice cloning
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // graceful drain
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Password      string        `yaml:"password"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	CookieDomain  string        `yaml:"cookie_domain"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // when set, the ledger lives in Postgres
	MaxConns int32  `yaml:"max_conns"`
}

type FileStoreConfig struct {
	Path     string `yaml:"path"`
	SeedJSON string `yaml:"seed_json"` // {"codes": {...}} written when the file is missing
}

type StoreConfig struct {
	File FileStoreConfig `yaml:"file"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty selects the in-process limiter
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SpeechConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	ConcurrentLimit   int           `yaml:"concurrent_limit"` // max concurrent paid calls
	MaxReferenceBytes int64         `yaml:"max_reference_bytes"`
}

type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`  // attempts per window per client
	Window time.Duration `yaml:"window"` // fixed window length
}

type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type I18nConfig struct {
	Lang string `yaml:"lang"` // zh | en
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Speech    SpeechConfig    `yaml:"speech"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Stats     StatsConfig     `yaml:"stats"`
	I18n      I18nConfig      `yaml:"i18n"`

	Runtime RuntimeConfig `yaml:"-"`
}

// EnvFiles are loaded, if present, before the environment is read. Variables
// already set in the process environment win.
var EnvFiles = []string{".env", "siliconflowkey.env"}

// LoadConfig reads the YAML file at path (a missing file means all defaults),
// applies environment overrides and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	for _, f := range EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Speech.APIKey, "API_KEY")
	setString(&cfg.Speech.BaseURL, "API_BASE_URL")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
	setString(&cfg.Admin.SessionSecret, "SESSION_SECRET")
	setString(&cfg.Server.Host, "APP_HOST")
	setString(&cfg.Store.File.Path, "ACTIVATION_STORE_PATH")
	setString(&cfg.Store.File.SeedJSON, "DEFAULT_ACTIVATION_CODES")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v := strings.TrimSpace(os.Getenv("APP_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	// PORT is what most container platforms inject.
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 7860
	}
	cfg.Server.RequestTimeout = orDuration(cfg.Server.RequestTimeout, 15*time.Second)
	cfg.Server.CloneTimeout = orDuration(cfg.Server.CloneTimeout, 5*time.Minute)
	cfg.Server.ShutdownTimeout = orDuration(cfg.Server.ShutdownTimeout, 10*time.Second)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Admin.Password == "" {
		cfg.Admin.Password = DefaultAdminPassword
		cfg.Runtime.DefaultAdminPassword = true
	}
	cfg.Admin.SessionTTL = orDuration(cfg.Admin.SessionTTL, 30*time.Minute)

	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Store.File.Path == "" {
		cfg.Store.File.Path = "activation_codes.json"
	}

	if cfg.Speech.BaseURL == "" {
		cfg.Speech.BaseURL = "https://api.siliconflow.cn/v1"
	}
	cfg.Speech.BaseURL = strings.TrimRight(cfg.Speech.BaseURL, "/")
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "IndexTeam/IndexTTS-2"
	}
	cfg.Speech.Timeout = orDuration(cfg.Speech.Timeout, 120*time.Second)
	if cfg.Speech.ConcurrentLimit <= 0 {
		cfg.Speech.ConcurrentLimit = 4
	}
	if cfg.Speech.MaxReferenceBytes <= 0 {
		cfg.Speech.MaxReferenceBytes = 10 << 20
	}

	if cfg.RateLimit.Limit <= 0 {
		cfg.RateLimit.Limit = 10
	}
	cfg.RateLimit.Window = orDuration(cfg.RateLimit.Window, time.Minute)
	cfg.Stats.Interval = orDuration(cfg.Stats.Interval, time.Minute)

	if cfg.I18n.Lang == "" {
		cfg.I18n.Lang = "zh"
	}
}

// Validate performs minimal sanity checks after defaults are applied.
func (c *Config) Validate() error {
	if c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.URL == "" && strings.TrimSpace(c.Store.File.Path) == "" {
		return errors.New("either database.url or store.file.path is required")
	}
	switch c.I18n.Lang {
	case "zh", "en":
	default:
		return fmt.Errorf("i18n.lang %q not supported", c.I18n.Lang)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Backend names the ledger store selected by this configuration.
func (c *Config) Backend() string {
	if c.Database.URL != "" {
		return "postgres"
	}
	return "file"
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
