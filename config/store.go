package config

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/c360studio/trackref/metrics"
	"github.com/c360studio/trackref/resolve"
)

// Store holds the live configuration. Readers take a snapshot per call, so a
// reload is observed by the next resolution and never by one in flight.
type Store struct {
	current atomic.Pointer[Config]
	reload  func() (*Config, error)
	logger  *slog.Logger
}

// NewStore creates a store holding initial. reload produces a replacement
// config and may be nil when the config never changes.
func NewStore(initial *Config, reload func() (*Config, error), logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{reload: reload, logger: logger}
	s.current.Store(initial)
	return s
}

// Load returns the current config. Callers must not modify it.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Snapshot returns the resolution view of the current config.
func (s *Store) Snapshot() (resolve.Snapshot, error) {
	return s.Load().Snapshot()
}

// Reload replaces the config. On error the previous config stays in place.
func (s *Store) Reload() error {
	if s.reload == nil {
		return fmt.Errorf("config store has no reload source")
	}
	cfg, err := s.reload()
	if err != nil {
		metrics.RecordConfigReload(false)
		s.logger.Error("Config reload failed, keeping previous config", "error", err)
		return err
	}
	s.current.Store(cfg)
	metrics.RecordConfigReload(true)
	s.logger.Info("Config reloaded", "channels", len(cfg.Tracker.ChannelMap))
	return nil
}
