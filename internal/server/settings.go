package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/modgraph/internal/config"
)

const (
	// DefaultAddress is used when the project config leaves metrics.address empty.
	DefaultAddress = "127.0.0.1:9464"
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultLogbookLines caps /logbook responses when no limit is given.
	DefaultLogbookLines = 50
)

// Settings captures runtime configuration for the HTTP server.
type Settings struct {
	Enabled      bool
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings using the project's .modgraph config and environment overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Enabled:      true,
		Address:      DefaultAddress,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		if addr := strings.TrimSpace(cfg.Project.Metrics.Address); addr != "" {
			settings.Address = addr
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("MODGRAPH_HTTP_ENABLED")); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			s.Enabled = enabled
		}
	}
	if addr := strings.TrimSpace(os.Getenv("MODGRAPH_HTTP_ADDR")); addr != "" {
		s.Address = addr
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = DefaultAddress
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}
