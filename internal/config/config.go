package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"upload-server-go/internal/logger"
)

var log = logger.WithComponent("CONFIG")

// EnvPrefix namespaces environment overrides (UPLOAD_PORT, UPLOAD_STORAGE_ROOT, ...).
const EnvPrefix = "UPLOAD"

// Defaults
const (
	DefaultEnv         = "development"
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 80
	DefaultStorageRoot = "/var/CoH-Data"
	DefaultFileMode    = "0644"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// fileConfig mirrors the keys accepted from files, env and flags.
type fileConfig struct {
	Env           string `mapstructure:"env"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	StorageRoot   string `mapstructure:"storage_root"`
	CreateParents bool   `mapstructure:"create_parents"`
	FileMode      string `mapstructure:"file_mode"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	SentryDSN     string `mapstructure:"sentry_dsn"`
}

// AppConfig holds the resolved application configuration
type AppConfig struct {
	Env           string
	Host          string
	Port          int
	StorageRoot   string
	CreateParents bool
	FileMode      os.FileMode
	LogLevel      string
	LogFormat     string
	SentryDSN     string
	ConfigFile    string
}

// Addr returns the listen address.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Common configuration errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError contains details about a configuration validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d config validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Validate checks the configuration for errors
func (c *AppConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ValidationError{Field: "port", Message: fmt.Sprintf("invalid port %d, must be 1-65535", c.Port)})
	}

	if c.StorageRoot == "" {
		errs = append(errs, ValidationError{Field: "storage_root", Message: "storage root is required"})
	} else if info, err := os.Stat(c.StorageRoot); err != nil {
		errs = append(errs, ValidationError{Field: "storage_root", Message: fmt.Sprintf("cannot access: %v", err)})
	} else if !info.IsDir() {
		errs = append(errs, ValidationError{Field: "storage_root", Message: "path exists but is not a directory"})
	}

	if c.FileMode == 0 || c.FileMode&^os.ModePerm != 0 {
		errs = append(errs, ValidationError{Field: "file_mode", Message: fmt.Sprintf("invalid file mode %#o", uint32(c.FileMode))})
	} else if c.FileMode&0o200 == 0 {
		log.Warn("File mode %#o is not owner-writable - existing files keep their own mode", uint32(c.FileMode))
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", c.LogLevel)})
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "log_format", Message: fmt.Sprintf("unknown format %q, want text or json", c.LogFormat)})
	}

	return errs
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigPath is an explicit config file. When empty, upload-server.{yaml,json,toml}
	// is searched in /etc/upload-server and the working directory.
	ConfigPath string

	// Flags are bound over file and env values when set on the command line.
	Flags *pflag.FlagSet
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"host":           "host",
	"port":           "port",
	"root":           "storage_root",
	"create-parents": "create_parents",
	"log-level":      "log_level",
	"log-format":     "log_format",
}

// Load resolves configuration from defaults, an optional file, the
// environment and command-line flags, in increasing precedence.
func Load(opts LoadOptions) (*AppConfig, error) {
	v := viper.New()

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
	} else {
		v.SetConfigName("upload-server")
		v.AddConfigPath("/etc/upload-server")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("env", EnvPrefix+"_ENV", "NODE_ENV")
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("sentry_dsn", EnvPrefix+"_SENTRY_DSN", "SENTRY_DSN")

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := raw.resolve()
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, err := range errs {
			log.Error("Validation error: %s", err.Error())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, errs.Error())
	}

	if cfg.ConfigFile != "" {
		log.Info("Configuration loaded successfully | env=%s addr=%s root=%s file=%s", cfg.Env, cfg.Addr(), cfg.StorageRoot, cfg.ConfigFile)
	} else {
		log.Info("Configuration loaded successfully | env=%s addr=%s root=%s", cfg.Env, cfg.Addr(), cfg.StorageRoot)
	}
	return cfg, nil
}

func (raw fileConfig) resolve() (*AppConfig, error) {
	mode, err := ParseFileMode(raw.FileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: file_mode: %v", ErrInvalidConfig, err)
	}

	root := strings.TrimSpace(raw.StorageRoot)
	if root != "" && !filepath.IsAbs(root) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve storage root: %w", err)
		}
		root = abs
	}

	return &AppConfig{
		Env:           raw.Env,
		Host:          raw.Host,
		Port:          raw.Port,
		StorageRoot:   root,
		CreateParents: raw.CreateParents,
		FileMode:      mode,
		LogLevel:      strings.ToLower(raw.LogLevel),
		LogFormat:     strings.ToLower(raw.LogFormat),
		SentryDSN:     raw.SentryDSN,
	}, nil
}

// ParseFileMode parses an octal permission string such as "0644" or "0o600".
func ParseFileMode(s string) (os.FileMode, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0o"), "0O")
	if s == "" {
		return 0, errors.New("empty file mode")
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal file mode %q", s)
	}
	return os.FileMode(n), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", DefaultEnv)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("storage_root", DefaultStorageRoot)
	v.SetDefault("create_parents", false)
	v.SetDefault("file_mode", DefaultFileMode)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("sentry_dsn", "")
}
