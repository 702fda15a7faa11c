package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/gebref-geocoder/internal/join"
)

// DefaultRegistryURL is the NRW open data download of the official house coordinates.
const DefaultRegistryURL = "https://www.opengeodata.nrw.de/produkte/geobasis/lika/alkis_sek/gebref/gebref_EPSG4647_ASCII.zip"

// Config holds the full application configuration.
type Config struct {
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Join     JoinConfig     `yaml:"join" mapstructure:"join"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RegistryConfig locates the official address registry.
type RegistryConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	FileName string `yaml:"file_name" mapstructure:"file_name"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// FetchConfig configures the registry download.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// InputConfig configures how the user address table is read.
type InputConfig struct {
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// OutputConfig configures the written result files.
type OutputConfig struct {
	Delimiter       string   `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding        string   `yaml:"encoding" mapstructure:"encoding"`
	GeometryFormats []string `yaml:"geometry_formats" mapstructure:"geometry_formats"`
}

// JoinConfig configures the registry join.
type JoinConfig struct {
	DuplicatePolicy string `yaml:"duplicate_policy" mapstructure:"duplicate_policy"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEBREF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("registry.url", DefaultRegistryURL)
	v.SetDefault("registry.cache_dir", "")
	v.SetDefault("registry.file_name", "gebref.txt")
	v.SetDefault("registry.encoding", "utf-8")
	v.SetDefault("fetch.user_agent", "gebref-geocoder/1.0")
	v.SetDefault("fetch.timeout_secs", 0)
	v.SetDefault("fetch.max_attempts", 1)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("input.sheet", "")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("output.encoding", "windows-1252")
	v.SetDefault("output.geometry_formats", []string{"gpkg"})
	v.SetDefault("join.duplicate_policy", "first")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Registry.CacheDir == "" {
		cfg.Registry.CacheDir = DefaultCacheDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that viper cannot express and normalizes the
// case of enumerated values.
func (c *Config) Validate() error {
	if c.Registry.URL == "" {
		return eris.New("config: registry.url is required")
	}
	if c.Registry.FileName == "" {
		return eris.New("config: registry.file_name is required")
	}
	if c.Fetch.MaxAttempts < 1 {
		return eris.Errorf("config: fetch.max_attempts must be >= 1, got %d", c.Fetch.MaxAttempts)
	}
	if c.Fetch.TimeoutSecs < 0 {
		return eris.Errorf("config: fetch.timeout_secs must be >= 0, got %d", c.Fetch.TimeoutSecs)
	}
	if len([]rune(c.Input.Delimiter)) != 1 {
		return eris.Errorf("config: input.delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	if len([]rune(c.Output.Delimiter)) != 1 {
		return eris.Errorf("config: output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	policy, err := join.ParsePolicy(c.Join.DuplicatePolicy)
	if err != nil {
		return eris.Wrap(err, "config: join.duplicate_policy")
	}
	c.Join.DuplicatePolicy = string(policy)
	for i, f := range c.Output.GeometryFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case "gpkg", "shp":
			c.Output.GeometryFormats[i] = f
		default:
			return eris.Errorf("config: unknown geometry format %q", f)
		}
	}
	return nil
}

// DefaultCacheDir returns the registry cache directory next to the executable.
// Falls back to the working directory when the executable path is unknown.
func DefaultCacheDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "gebref_EPSG4647_ASCII"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "gebref_EPSG4647_ASCII")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
