// Package config manages the persisted provider configuration for auth-pkce.
//
// A single configuration is active per installation, stored as config.yaml
// inside the state directory (default ~/.config/auth-pkce). The directory is
// created with owner-only permissions (0700) and the file is written with
// 0600 via an atomic temp-file-and-rename so a crash never leaves a
// half-written configuration readable by a subsequent load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultStateDir is the default state directory, relative to the
	// user's home directory. This follows XDG conventions.
	DefaultStateDir = ".config/auth-pkce"

	// ConfigFileName is the configuration file inside the state directory.
	ConfigFileName = "config.yaml"

	// ConfigVersion is the current configuration schema version.
	ConfigVersion = "1"

	// DefaultRedirectURI is the loopback redirect used when none is configured.
	DefaultRedirectURI = "http://localhost:3000/callback"

	// DefaultScope is the scope requested when none is configured.
	DefaultScope = "openid profile email offline_access"

	dirMode  = 0700
	fileMode = 0600
)

// ProviderConfig describes the OAuth provider this installation talks to.
// It is created by `auth-pkce configure` and only mutated by reconfiguration.
//
// The endpoint fields are optional: when unset they are resolved from the
// provider's discovery document at flow time and cached in memory for the
// remainder of the process. Environment variables override persisted values
// on load.
type ProviderConfig struct {
	BaseURL     string `yaml:"baseUrl" env:"AUTH_PKCE_BASE_URL"`
	ClientID    string `yaml:"clientId" env:"AUTH_PKCE_CLIENT_ID"`
	RedirectURI string `yaml:"redirectUri" env:"AUTH_PKCE_REDIRECT_URI"`
	Scope       string `yaml:"scope" env:"AUTH_PKCE_SCOPE"`

	AuthorizationEndpoint string `yaml:"authorizationEndpoint,omitempty" env:"AUTH_PKCE_AUTHORIZATION_ENDPOINT"`
	TokenEndpoint         string `yaml:"tokenEndpoint,omitempty" env:"AUTH_PKCE_TOKEN_ENDPOINT"`
	UserinfoEndpoint      string `yaml:"userinfoEndpoint,omitempty" env:"AUTH_PKCE_USERINFO_ENDPOINT"`
	EndSessionEndpoint    string `yaml:"endSessionEndpoint,omitempty" env:"AUTH_PKCE_END_SESSION_ENDPOINT"`

	LogLevel      string `yaml:"logLevel,omitempty" env:"AUTH_PKCE_LOG_LEVEL"`
	ConfigVersion string `yaml:"configVersion"`
}

// ApplyDefaults fills unset optional fields with their defaults.
func (c *ProviderConfig) ApplyDefaults() {
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.ConfigVersion == "" {
		c.ConfigVersion = ConfigVersion
	}
}

// HasEndpoints reports whether both required OAuth endpoints are set,
// making discovery unnecessary.
func (c *ProviderConfig) HasEndpoints() bool {
	return c.AuthorizationEndpoint != "" && c.TokenEndpoint != ""
}

// Manager persists and retrieves the provider configuration.
// It is an explicitly constructed instance (no package-level singleton) so
// tests can inject temporary directories.
type Manager struct {
	mu  sync.RWMutex
	dir string
}

// NewManager creates a configuration manager rooted at dir.
// When dir is empty the default state directory under the user's home is used.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStateDir)
	}

	return &Manager{dir: dir}, nil
}

// Dir returns the state directory this manager writes to.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the full path of the configuration file.
func (m *Manager) Path() string {
	return filepath.Join(m.dir, ConfigFileName)
}

// Exists reports whether a persisted configuration is present.
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.Path())
	return err == nil
}

// Load reads the persisted configuration and applies environment overrides.
// Returns (nil, nil) when no configuration exists; loading is idempotent.
func (m *Manager) Load() (*ProviderConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	var cfg ProviderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save persists the configuration with owner-only permissions.
// The write is atomic: data goes to a uniquely named temp file in the same
// directory which is then renamed over the target.
func (m *Manager) Save(cfg *ProviderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg.ApplyDefaults()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.MkdirAll(m.dir, dirMode); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	return atomicWrite(m.Path(), data, fileMode)
}

// Delete removes the persisted configuration.
// Deleting an absent configuration is not an error.
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename. The rename is atomic on POSIX filesystems, so a
// crash mid-write never leaves a truncated file at path.
func atomicWrite(path string, data []byte, mode os.FileMode) error {
	tmpPath := path + ".tmp-" + uuid.NewString()

	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
