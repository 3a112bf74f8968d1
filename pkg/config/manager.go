package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
)

// Manager owns the active Config, loading it from a YAML file layered over
// Default() and re-validating on every Load/Reload.
type Manager struct {
	mu         sync.RWMutex
	configPath string
	config     *Config
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithConfigPath sets the YAML file the Manager loads from.
func WithConfigPath(path string) ManagerOption {
	return func(m *Manager) { m.configPath = path }
}

// NewManager builds a Manager and performs an initial Load.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads configPath (if set) over Default() and validates the result.
// A Manager with no configPath simply validates the defaults.
func (m *Manager) Load() error {
	cfg := Default()

	if m.configPath != "" {
		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return memverrors.Wrap(err, memverrors.ConfigurationError, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return memverrors.Wrap(err, memverrors.ConfigurationError, "parse config file")
		}
	}

	if err := cfg.Validate(); err != nil {
		return memverrors.Wrap(err, memverrors.ConfigurationError, "validate config")
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns the active configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Reload re-reads configPath and swaps in the new config only if it
// validates; a broken file leaves the previously loaded config in place.
func (m *Manager) Reload() error {
	return m.Load()
}

// Save writes the active configuration back to configPath.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	path := m.configPath
	m.mu.RUnlock()

	if path == "" {
		return memverrors.New(memverrors.ConfigurationError, "no config path set")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return memverrors.Wrap(err, memverrors.ConfigurationError, "marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return memverrors.Wrap(err, memverrors.ConfigurationError, "write config file")
	}
	return nil
}
