// Package config loads switchbot-key settings from an optional YAML file and
// SWITCHBOT_KEY_* environment variables. Environment values win over the
// file; command line flags are applied by the caller afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

const (
	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "SWITCHBOT_KEY_"
	// EnvConfigFile names an explicit config file.
	EnvConfigFile = EnvPrefix + "CONFIG"

	appName = "switchbot-key"

	DefaultScheme     = "switchbot"
	DefaultListenAddr = "127.0.0.1:6000"
	DefaultRegion     = "us-east-1"
	DefaultAPIBaseURL = "https://l9ren7efdj.execute-api.us-east-1.amazonaws.com"

	ResponseTypeToken = "token"
	ResponseTypeCode  = "code"
)

// Config holds every tunable of the tool. No credentials are built in.
type Config struct {
	Scheme     string `yaml:"scheme" env:"SCHEME"`
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	// CallbackTimeout bounds the wait for the redirect; zero waits forever.
	CallbackTimeout time.Duration `yaml:"callback_timeout" env:"CALLBACK_TIMEOUT"`
	// ResponseType is "token" (implicit grant) or "code" (PKCE).
	ResponseType string `yaml:"response_type" env:"RESPONSE_TYPE"`

	// CognitoDomain is the hosted UI base URL, e.g. https://<domain>.auth.<region>.amazoncognito.com.
	CognitoDomain string `yaml:"cognito_domain" env:"COGNITO_DOMAIN"`
	// CognitoEndpoint overrides the identity provider API endpoint.
	CognitoEndpoint string `yaml:"cognito_endpoint" env:"COGNITO_ENDPOINT"`
	ClientID        string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret    string `yaml:"client_secret" env:"CLIENT_SECRET"`
	Region          string `yaml:"region" env:"REGION"`
	APIBaseURL      string `yaml:"api_base_url" env:"API_BASE_URL"`

	// WindowsRoot is HKCU or HKCR.
	WindowsRoot     string `yaml:"windows_root" env:"WINDOWS_ROOT"`
	BundleDir       string `yaml:"bundle_dir" env:"BUNDLE_DIR"`
	ApplicationsDir string `yaml:"applications_dir" env:"APPLICATIONS_DIR"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Scheme:       DefaultScheme,
		ListenAddr:   DefaultListenAddr,
		ResponseType: ResponseTypeToken,
		Region:       DefaultRegion,
		APIBaseURL:   DefaultAPIBaseURL,
	}
}

// DefaultPath returns <user config dir>/switchbot-key/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName, "config.yaml"), nil
}

// Load reads the config file named by SWITCHBOT_KEY_CONFIG, or the default
// path when unset, then applies environment overrides. A missing default
// file is not an error; a missing explicit file is.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			path = ""
		}
	}
	return LoadFile(path, explicit)
}

// LoadFile is Load with an explicit path. required makes a missing file an error.
func LoadFile(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, apperrors.NewConfigurationError("failed to parse config file").WithDetails(fmt.Sprintf("%s: %v", path, err))
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, apperrors.NewConfigurationError("failed to read config file").WithDetails(err.Error())
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, apperrors.NewConfigurationError("failed to parse environment").WithDetails(err.Error())
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Scheme == "" {
		return apperrors.NewConfigurationError("scheme must not be empty")
	}
	if c.ListenAddr == "" {
		return apperrors.NewConfigurationError("listen address must not be empty")
	}
	if c.CallbackTimeout < 0 {
		return apperrors.NewConfigurationError("callback timeout must not be negative")
	}
	switch c.ResponseType {
	case ResponseTypeToken, ResponseTypeCode:
	default:
		return apperrors.NewConfigurationError("response type must be token or code").WithDetails(c.ResponseType)
	}
	return nil
}

// RequireClient checks that identity provider credentials are configured.
func (c *Config) RequireClient() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, EnvPrefix+"CLIENT_ID")
	}
	if c.CognitoDomain == "" {
		missing = append(missing, EnvPrefix+"COGNITO_DOMAIN")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigurationError("identity provider is not configured").
			WithDetails("set " + strings.Join(missing, ", ") + " or the config file equivalents")
	}
	return nil
}

// LockPath returns the base path of the per-user web-auth lock.
func LockPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appName, "web-auth")
}
