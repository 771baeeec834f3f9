package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Store holds the loaded configuration and keeps it current while watched.
type Store struct {
	v    *viper.Viper
	path string

	mu      sync.RWMutex
	current AppConfig
}

// Load reads the YAML file at path, applies GPSNAV_ environment overrides
// and validates the result. An empty path loads defaults and environment
// only.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := flatten(Default())
	if err != nil {
		return nil, err
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	s := &Store{v: v, path: path}
	cfg, err := s.decode()
	if err != nil {
		return nil, err
	}
	s.current = cfg
	return s, nil
}

func (s *Store) decode() (AppConfig, error) {
	cfg := Default()
	if err := s.v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Current returns the latest valid configuration.
func (s *Store) Current() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Path returns the config file path, empty when none was loaded.
func (s *Store) Path() string {
	return s.path
}

// reload decodes the file again. An invalid file keeps the previous
// configuration.
func (s *Store) reload(logger *slog.Logger) (AppConfig, bool) {
	cfg, err := s.decode()
	if err != nil {
		logger.Warn("ignoring invalid config change", "path", s.path, "error", err)
		return AppConfig{}, false
	}
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	logger.Info("config reloaded", "path", s.path)
	return cfg, true
}

// Watch calls fn with the new configuration each time the file changes and
// still validates. It does nothing when no file was loaded.
func (s *Store) Watch(logger *slog.Logger, fn func(AppConfig)) {
	if s.path == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug("config file changed", "path", e.Name, "op", e.Op.String())
		if cfg, ok := s.reload(logger); ok && fn != nil {
			fn(cfg)
		}
	})
	s.v.WatchConfig()
}
