package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/recera/perplexia/pkg/mindmap"
)

// EnvPrefix is prepended to every environment override, e.g. PERPLEXIA_BACKEND_TOKEN
const EnvPrefix = "PERPLEXIA"

// Config represents perplexia.yaml
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Source  SourceConfig  `mapstructure:"source" yaml:"source"`
	Library LibraryConfig `mapstructure:"library" yaml:"library"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	View    ViewConfig    `mapstructure:"view" yaml:"view"`
}

// ColorConfig maps log levels to ANSI colour names for the console encoder
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// LoggerConfig controls the process logger
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" | "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// BackendConfig points at the document back end
type BackendConfig struct {
	URL       string        `mapstructure:"url" yaml:"url"`
	Token     string        `mapstructure:"token" yaml:"token"`
	SessionID int64         `mapstructure:"session_id" yaml:"session_id"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	Burst     int           `mapstructure:"burst" yaml:"burst"`
}

// SourceConfig selects where documents are loaded from
type SourceConfig struct {
	Kind        string `mapstructure:"kind" yaml:"kind"` // "api" | "postgres" | "library" | "file"
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
}

// LibraryConfig locates the local sqlite library
type LibraryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CacheConfig controls the projection cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir     string        `mapstructure:"dir" yaml:"dir"`
	MaxSize int64         `mapstructure:"max_size" yaml:"max_size"` // bytes
	MaxAge  time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// ServerConfig controls `perplexia serve`
type ServerConfig struct {
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Token string `mapstructure:"token" yaml:"token"`
}

// ViewConfig overrides fit timing and colours
type ViewConfig struct {
	FitDelay       time.Duration   `mapstructure:"fit_delay" yaml:"fit_delay"`
	InitFitDelay   time.Duration   `mapstructure:"init_fit_delay" yaml:"init_fit_delay"`
	FitPadding     float64         `mapstructure:"fit_padding" yaml:"fit_padding"`
	InitFitPadding float64         `mapstructure:"init_fit_padding" yaml:"init_fit_padding"`
	Palette        mindmap.Palette `mapstructure:"palette" yaml:"palette"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "perplexia",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      7,
			Colors: ColorConfig{
				Debug: "cyan",
				Info:  "green",
				Warn:  "yellow",
				Error: "red",
				Fatal: "magenta",
			},
		},
		Backend: BackendConfig{
			URL:       "http://localhost:8000",
			Timeout:   15 * time.Second,
			RateLimit: 5,
			Burst:     10,
		},
		Source: SourceConfig{
			Kind: "api",
		},
		Library: LibraryConfig{
			Path: "perplexia.db",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".perplexia/cache",
			MaxSize: 64 << 20,
			MaxAge:  7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		View: ViewConfig{
			FitDelay:       100 * time.Millisecond,
			InitFitDelay:   200 * time.Millisecond,
			FitPadding:     0.3,
			InitFitPadding: 0.4,
			Palette:        mindmap.DefaultPalette(),
		},
	}
}

// SetDefaults registers DefaultConfig with v so that every key is known to
// viper, which AutomaticEnv needs to resolve env-only values on Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.service_name", d.Logger.ServiceName)
	v.SetDefault("logger.log_file", d.Logger.LogFile)
	v.SetDefault("logger.max_size", d.Logger.MaxSize)
	v.SetDefault("logger.max_backups", d.Logger.MaxBackups)
	v.SetDefault("logger.max_age", d.Logger.MaxAge)
	v.SetDefault("logger.compress", d.Logger.Compress)
	v.SetDefault("logger.colors.debug", d.Logger.Colors.Debug)
	v.SetDefault("logger.colors.info", d.Logger.Colors.Info)
	v.SetDefault("logger.colors.warn", d.Logger.Colors.Warn)
	v.SetDefault("logger.colors.error", d.Logger.Colors.Error)
	v.SetDefault("logger.colors.fatal", d.Logger.Colors.Fatal)

	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.token", d.Backend.Token)
	v.SetDefault("backend.session_id", d.Backend.SessionID)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.rate_limit", d.Backend.RateLimit)
	v.SetDefault("backend.burst", d.Backend.Burst)

	v.SetDefault("source.kind", d.Source.Kind)
	v.SetDefault("source.database_url", d.Source.DatabaseURL)
	v.SetDefault("source.dir", d.Source.Dir)

	v.SetDefault("library.path", d.Library.Path)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("cache.max_age", d.Cache.MaxAge)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.token", d.Server.Token)

	v.SetDefault("view.fit_delay", d.View.FitDelay)
	v.SetDefault("view.init_fit_delay", d.View.InitFitDelay)
	v.SetDefault("view.fit_padding", d.View.FitPadding)
	v.SetDefault("view.init_fit_padding", d.View.InitFitPadding)
	v.SetDefault("view.palette.central", d.View.Palette.Central)
	v.SetDefault("view.palette.topic", d.View.Palette.Topic)
	v.SetDefault("view.palette.subtopic", d.View.Palette.Subtopic)
	v.SetDefault("view.palette.default", d.View.Palette.Default)
	v.SetDefault("view.palette.text", d.View.Palette.Text)
	v.SetDefault("view.palette.border", d.View.Palette.Border)
	v.SetDefault("view.palette.hierarchy_stroke", d.View.Palette.HierarchyStroke)
	v.SetDefault("view.palette.association_stroke", d.View.Palette.AssociationStroke)
	v.SetDefault("view.palette.edge_label", d.View.Palette.EdgeLabel)
	v.SetDefault("view.palette.edge_label_size", d.View.Palette.EdgeLabelSize)
}

// Configure points v at a config file (or perplexia.yaml in the working
// directory when file is empty) and enables PERPLEXIA_* overrides.
// A missing default file is not an error.
func Configure(v *viper.Viper, file string) error {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("perplexia")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short names for the secrets people most often export
	_ = v.BindEnv("backend.token", EnvPrefix+"_TOKEN", EnvPrefix+"_BACKEND_TOKEN")
	_ = v.BindEnv("source.database_url", "DATABASE_URL", EnvPrefix+"_SOURCE_DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

var (
	mu      sync.RWMutex
	current *Config
)

// Load unmarshals v into a Config, validates it and makes it the process config
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the loaded config, or the defaults when Load has not run
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return DefaultConfig()
	}
	return current
}

// applyDefaults fills values that unmarshalling left at their zero value
func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = defaults.Logger.Level
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = defaults.Logger.Format
	}
	if cfg.Logger.ServiceName == "" {
		cfg.Logger.ServiceName = defaults.Logger.ServiceName
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaults.Backend.Timeout
	}
	if cfg.Backend.Burst <= 0 {
		cfg.Backend.Burst = defaults.Backend.Burst
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = defaults.Source.Kind
	}
	if cfg.Library.Path == "" {
		cfg.Library.Path = defaults.Library.Path
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = defaults.Cache.Dir
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.View.FitDelay <= 0 {
		cfg.View.FitDelay = defaults.View.FitDelay
	}
	if cfg.View.InitFitDelay <= 0 {
		cfg.View.InitFitDelay = defaults.View.InitFitDelay
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}

	switch c.Source.Kind {
	case "api":
		if c.Backend.URL == "" {
			return errors.New("backend.url is required for the api source")
		}
	case "postgres":
		if c.Source.DatabaseURL == "" {
			return errors.New("source.database_url is required for the postgres source")
		}
	case "library":
	case "file":
		if c.Source.Dir == "" {
			return errors.New("source.dir is required for the file source")
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}

	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend.rate_limit must not be negative, got %v", c.Backend.RateLimit)
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.max_size must not be negative, got %d", c.Cache.MaxSize)
	}
	if c.View.FitPadding < 0 || c.View.InitFitPadding < 0 {
		return errors.New("view fit padding must not be negative")
	}
	return nil
}
