// Package config loads gateway settings from built-in defaults, an optional YAML
// file and GATEWAY_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/logging"
)

const (
	BackendGenerate = "generate"
	BackendOpenAI   = "openai"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Backend BackendConfig  `koanf:"backend"`
	Store   StoreConfig    `koanf:"store"`
	Archive ArchiveConfig  `koanf:"archive"`
	History HistoryConfig  `koanf:"history"`
	Logging logging.Config `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	WriteWait       time.Duration `koanf:"write_wait"`
	ReadLimit       int64         `koanf:"read_limit"`
	ObserverQueue   int           `koanf:"observer_queue"`
}

type BackendConfig struct {
	Driver            string        `koanf:"driver"`
	URL               string        `koanf:"url"`
	Model             string        `koanf:"model"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	Temperature       *float64      `koanf:"temperature"`
	TopP              *float64      `koanf:"top_p"`
	MaxTokens         int           `koanf:"max_tokens"`
	Stop              []string      `koanf:"stop"`
	RepetitionPenalty *float64      `koanf:"repetition_penalty"`
}

// Sampling returns the gateway-wide generation defaults.
func (b BackendConfig) Sampling() ports.Sampling {
	return ports.Sampling{
		Temperature:       b.Temperature,
		TopP:              b.TopP,
		MaxTokens:         b.MaxTokens,
		Stop:              b.Stop,
		RepetitionPenalty: b.RepetitionPenalty,
	}
}

type StoreConfig struct {
	Driver       string        `koanf:"driver"`
	DSN          string        `koanf:"dsn"`
	Database     string        `koanf:"database"`
	Collection   string        `koanf:"collection"`
	Path         string        `koanf:"path"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type ArchiveConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

type HistoryConfig struct {
	Limit    int `koanf:"limit"`
	MaxLimit int `koanf:"max_limit"`
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ObserverQueue <= 0 {
		errs = append(errs, errors.New("server.observer_queue must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Backend.Driver {
	case BackendGenerate:
		if c.Backend.URL == "" {
			errs = append(errs, errors.New("backend.url is required for the generate driver"))
		}
	case BackendOpenAI:
		if c.Backend.Model == "" {
			errs = append(errs, errors.New("backend.model is required for the openai driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend.driver must be %q or %q, got %q", BackendGenerate, BackendOpenAI, c.Backend.Driver))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.Server.WriteWait < 0 || c.Store.WriteTimeout < 0 {
		errs = append(errs, errors.New("server.write_wait and store.write_timeout must not be negative"))
	}
	if c.Backend.MaxTokens < 0 {
		errs = append(errs, errors.New("backend.max_tokens must not be negative"))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres, StoreMongo:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver))
		}
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, postgres, mongo, sqlite", c.Store.Driver))
	}

	if c.Archive.Workers <= 0 || c.Archive.QueueSize <= 0 {
		errs = append(errs, errors.New("archive.workers and archive.queue_size must be positive"))
	}
	if c.History.Limit <= 0 || c.History.MaxLimit < c.History.Limit {
		errs = append(errs, errors.New("history.limit must be positive and not exceed history.max_limit"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	return errors.Join(errs...)
}
