package app

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/specialistvlad/dataflowgo/internal/history"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// NetworkPath is a network file or a directory of them. Commands that
	// only inspect the registry or the archive leave it empty.
	NetworkPath string
	// Variables are exposed to network files as var.<name>.
	Variables map[string]string

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`

	Archive history.Config

	// ControlAddr is the listen address of the control server. Empty
	// disables it.
	ControlAddr string `validate:"omitempty,hostname_port"`
	// RenderHost is the socket.io URL of the render host. Empty disables
	// the feedback bridge.
	RenderHost         string `validate:"omitempty,url"`
	InsecureSkipVerify bool
	// Schedule re-runs the whole network on a cron expression.
	Schedule string
	// Watch re-applies parameters when the network files change.
	Watch bool
}

// NewConfig fills in defaults and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
	}
	return &cfg, nil
}
