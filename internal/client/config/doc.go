// Package config loads runtime configuration for the eduportal client.
//
// Sources & precedence (later wins)
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file, JSON or YAML. Set with --config, otherwise
//     $XDG_CONFIG_HOME/eduportal/config.yaml is read when it exists.
//  3. Optional .env file in the working directory (or the one set with
//     EDUPORTAL_ENV_FILE). Values already in the environment win.
//  4. Environment: EDUPORTAL_API_URL (or VITE_API_URL), EDUPORTAL_TIMEOUT,
//     EDUPORTAL_DB, EDUPORTAL_PASSPHRASE, EDUPORTAL_LOG_LEVEL,
//     EDUPORTAL_LOG_FORMAT.
//  5. Command-line flags registered by RegisterFlags.
//
// # File schema
//
//	api_url: http://localhost:5000/api
//	timeout: 10s
//	db: /home/me/.local/share/eduportal/session.db
//	passphrase: ""
//	log_level: info
//	log_format: text
//
// Primary API
//
//   - type Config              holds the settings above
//   - func Load(opts) (*Config, error)
//   - func RegisterFlags(fs)   adds the flags to a pflag set
package config
