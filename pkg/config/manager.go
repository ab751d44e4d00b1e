package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Provider supplies one layer of configuration into k. Providers are
// applied in the order passed to Manager.Load, so later providers
// override earlier ones: struct defaults first, then environment
// overrides.
type Provider interface {
	Load(k *koanf.Koanf) error
}

type defaultProvider struct{}

// NewDefaultProvider loads Default() as the base layer.
func NewDefaultProvider() Provider { return defaultProvider{} }

func (defaultProvider) Load(k *koanf.Koanf) error {
	return k.Load(structs.Provider(Default(), "koanf"), nil)
}

type envProvider struct{ prefix string }

// NewEnvProvider loads environment variables prefixed with "AUTOMATION_"
// (e.g. AUTOMATION_SERVER_PORT), translating `_` to the koanf `.` delimiter.
func NewEnvProvider() Provider { return envProvider{prefix: "AUTOMATION_"} }

func (p envProvider) Load(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: p.prefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, p.prefix)
			key = strings.ToLower(strings.ReplaceAll(key, "_", "."))
			return key, value
		},
	}), nil)
}

// Manager owns the loaded Config and the Service used to validate it.
type Manager struct {
	svc *Service
	mu  sync.RWMutex
	cfg *Config
}

// NewManager builds a Manager backed by svc.
func NewManager(svc *Service) *Manager {
	return &Manager{svc: svc}
}

// Load applies providers in order into a fresh koanf instance, unmarshals
// the result, validates it, and stores it as the current config.
func (m *Manager) Load(_ context.Context, providers ...Provider) (*Config, error) {
	k := koanf.New(".")
	for _, p := range providers {
		if err := p.Load(k); err != nil {
			return nil, fmt.Errorf("load config provider: %w", err)
		}
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Polling.ServiceIntervalMinutes == nil {
		cfg.Polling.ServiceIntervalMinutes = DefaultServiceIntervalMinutes()
	}
	if err := m.svc.Validate(cfg); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the currently loaded config, or nil if Load has not run.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Close releases any resources held by the manager. There are none today;
// the method exists so callers can defer it unconditionally as the config
// surface grows (e.g. a future file-watch provider).
func (m *Manager) Close(_ context.Context) error {
	return nil
}
