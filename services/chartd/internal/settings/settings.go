// Package settings loads chartd configuration from layered YAML and
// CHARTD_* environment overrides.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/config"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

const Service = "chartd"

type Settings struct {
	Addr        string        `yaml:"addr"`
	UpdateDelay time.Duration `yaml:"update_delay"`
	Database    Database      `yaml:"database"`
	Log         Log           `yaml:"log"`
	Format      Format        `yaml:"format"`
	WS          WS            `yaml:"ws"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Format struct {
	Timezone string `yaml:"timezone"`
}

type WS struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func Defaults() Settings {
	return Settings{
		Addr:        ":8080",
		UpdateDelay: 100 * time.Millisecond,
		Database:    Database{Driver: "sqlite3", DSN: "chartd.db"},
		Log:         Log{Level: "info"},
		Format:      Format{Timezone: "UTC"},
		WS:          WS{WriteTimeout: 5 * time.Second},
	}
}

// Load reads <root>/chartd.yaml, <root>/env/<env>/chartd.yaml and the
// environment over the defaults. A missing root yields the defaults plus
// environment overrides.
func Load(ctx context.Context, root, env string, environ func() []string, log *telemetry.Logger) (Settings, error) {
	if log == nil {
		log = telemetry.Nop()
	}
	s := Defaults()
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	l, err := config.NewLoader(root, config.Options{
		Service: Service,
		Env:     env,
		Environ: environ,
		OnWarn: func(code, detail string) {
			log.Warn(ctx, "config.warning", map[string]any{"code": code, "detail": detail})
		},
	})
	if err != nil {
		return Settings{}, err
	}
	b, err := l.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := b.Decode(&s); err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	switch s.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("settings: database.driver must be sqlite3 or postgres, got %q", s.Database.Driver)
	}
	if s.UpdateDelay < 0 {
		return fmt.Errorf("settings: update_delay must be >= 0")
	}
	if _, err := time.LoadLocation(s.Format.Timezone); err != nil {
		return fmt.Errorf("settings: format.timezone: %w", err)
	}
	return nil
}

// Location resolves Format.Timezone.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Format.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
