package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys shared by the file schema, the environment and flag bindings.
const (
	KeyAPIURL     = "api_url"
	KeyTimeout    = "timeout"
	KeyDB         = "db"
	KeyPassphrase = "passphrase"
	KeyLogLevel   = "log_level"
	KeyLogFormat  = "log_format"
)

const (
	envPrefix  = "EDUPORTAL"
	envDotFile = "EDUPORTAL_ENV_FILE"
	appDir     = "eduportal"
)

// Config holds runtime settings for the eduportal client.
type Config struct {
	APIBaseURL      string        `mapstructure:"api_url"`
	RequestTimeout  time.Duration `mapstructure:"timeout"`
	DatabasePath    string        `mapstructure:"db"`
	StorePassphrase string        `mapstructure:"passphrase"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:5000/api"
	c.RequestTimeout = 10 * time.Second
	c.DatabasePath = filepath.Join(dataDir(), appDir, "session.db")
	c.StorePassphrase = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadOptions selects the optional sources of Load.
type LoadOptions struct {
	// ConfigFile is an explicit config file; it must exist when set.
	ConfigFile string
	// DotEnvFile overrides the .env lookup.
	DotEnvFile string
	// Flags, when set, overrides every other source for flags the user
	// changed. The flag names are those of RegisterFlags.
	Flags *pflag.FlagSet
}

// Load builds a Config from defaults, the config file, .env, the
// environment and flags.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	var defaults Config
	defaults.LoadDefaults()
	v.SetDefault(KeyAPIURL, defaults.APIBaseURL)
	v.SetDefault(KeyTimeout, defaults.RequestTimeout)
	v.SetDefault(KeyDB, defaults.DatabasePath)
	v.SetDefault(KeyPassphrase, defaults.StorePassphrase)
	v.SetDefault(KeyLogLevel, defaults.LogLevel)
	v.SetDefault(KeyLogFormat, defaults.LogFormat)

	if err := loadDotEnv(opts.DotEnvFile); err != nil {
		return nil, err
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.AddConfigPath(filepath.Join(configDir(), appDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DatabasePath = expandHome(cfg.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute http(s) URL", KeyAPIURL, c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid %s %s: must be positive", KeyTimeout, c.RequestTimeout)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%s must not be empty", KeyDB)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid %s %q: must be text or json", KeyLogFormat, c.LogFormat)
	}
	return nil
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		KeyAPIURL:     {envPrefix + "_API_URL", "VITE_API_URL"},
		KeyTimeout:    {envPrefix + "_TIMEOUT"},
		KeyDB:         {envPrefix + "_DB"},
		KeyPassphrase: {envPrefix + "_PASSPHRASE"},
		KeyLogLevel:   {envPrefix + "_LOG_LEVEL"},
		KeyLogFormat:  {envPrefix + "_LOG_FORMAT"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

// loadDotEnv loads path, or EDUPORTAL_ENV_FILE, or ./.env. A missing
// default file is not an error.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(envDotFile)
		explicit = path != ""
	}
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
