package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/afero"
)

// Config represents the global ~/.mxt/config.toml. Every field can be
// overridden by an MXT_* environment variable.
type Config struct {
	DefaultSession string   `toml:"default_session" env:"MXT_DEFAULT_SESSION"`
	Homeserver     string   `toml:"homeserver" env:"MXT_HOMESERVER"`
	DeviceName     string   `toml:"device_name" env:"MXT_DEVICE_NAME"`
	LogLevel       string   `toml:"log_level" env:"MXT_LOG_LEVEL"`
	Markdown       bool     `toml:"markdown" env:"MXT_MARKDOWN"`
	DeepLinkScheme string   `toml:"deep_link_scheme" env:"MXT_DEEP_LINK_SCHEME"`
	PermalinkHosts []string `toml:"permalink_hosts" env:"MXT_PERMALINK_HOSTS" envSeparator:","`
	LoginLinkHost  string   `toml:"login_link_host" env:"MXT_LOGIN_LINK_HOST"`
	OIDC           OIDC     `toml:"oidc" envPrefix:"MXT_OIDC_"`
}

// OIDC configures the authorization-code flow used for native Matrix OIDC login.
type OIDC struct {
	Issuer      string   `toml:"issuer" env:"ISSUER"`
	ClientID    string   `toml:"client_id" env:"CLIENT_ID"`
	AuthURL     string   `toml:"auth_url" env:"AUTH_URL"`
	TokenURL    string   `toml:"token_url" env:"TOKEN_URL"`
	RedirectURI string   `toml:"redirect_uri" env:"REDIRECT_URI"`
	Scopes      []string `toml:"scopes" env:"SCOPES" envSeparator:" "`
}

// Enabled reports whether enough is configured to start an OIDC login.
func (o OIDC) Enabled() bool {
	return o.ClientID != "" && o.AuthURL != "" && o.TokenURL != "" && o.RedirectURI != ""
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DeviceName:     "mxt",
		LogLevel:       "info",
		Markdown:       true,
		DeepLinkScheme: "mxt",
		PermalinkHosts: []string{"app.element.io"},
		LoginLinkHost:  "mobile.element.io",
		OIDC: OIDC{
			RedirectURI: "io.mxt.app:/callback",
			Scopes:      []string{"openid", "urn:matrix:org.matrix.msc2967.client:api:*"},
		},
	}
}

// Load reads config from the given path on fs and applies environment overrides.
// Returns an error if the file is missing or malformed.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is like Load but falls back to Default (plus environment
// overrides) when the file does not exist.
func LoadOrDefault(fs afero.Fs, path string) (*Config, error) {
	cfg, err := Load(fs, path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(fs afero.Fs, path string, cfg *Config) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
