package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names registered by RegisterFlags.
const (
	FlagConfig    = "config"
	FlagAPIURL    = "api-url"
	FlagDB        = "db"
	FlagTimeout   = "timeout"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

var flagKeys = map[string]string{
	FlagAPIURL:    KeyAPIURL,
	FlagDB:        KeyDB,
	FlagTimeout:   KeyTimeout,
	FlagLogLevel:  KeyLogLevel,
	FlagLogFormat: KeyLogFormat,
}

// RegisterFlags adds the configuration flags to fs. Defaults shown in help
// are the built-in ones; a flag only takes effect when set.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.String(FlagConfig, "", "path to a JSON or YAML config file")
	fs.String(FlagAPIURL, d.APIBaseURL, "base URL of the auth service")
	fs.String(FlagDB, d.DatabasePath, "path to the local session database")
	fs.Duration(FlagTimeout, d.RequestTimeout, "request timeout")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(FlagLogFormat, d.LogFormat, "log format (text or json)")
}

// ConfigFileFlag returns the value of --config, if registered on fs.
func ConfigFileFlag(fs *pflag.FlagSet) string {
	if f := fs.Lookup(FlagConfig); f != nil {
		return f.Value.String()
	}
	return ""
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

