// Package config loads process settings from the environment and the
// optional game defaults file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/basta/go/internal/dbconfig"
	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/roomstore"
)

// Config is the server configuration.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	StoreDriver  string `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"basta.db"`
	NATSURL      string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSKVBucket string `env:"NATS_KV_BUCKET" envDefault:"room-state"`

	EventsEnabled       bool   `env:"EVENTS_ENABLED" envDefault:"false"`
	EventsStream        string `env:"EVENTS_STREAM" envDefault:"ROOM_EVENTS"`
	EventsSubjectPrefix string `env:"EVENTS_SUBJECT_PREFIX" envDefault:"rooms.events"`

	GameDefaultsFile  string        `env:"GAME_DEFAULTS_FILE"`
	PersistMaxRetries int           `env:"PERSIST_MAX_RETRIES" envDefault:"3"`
	PersistRetryDelay time.Duration `env:"PERSIST_RETRY_DELAY" envDefault:"200ms"`

	WS WSConfig
	DB dbconfig.Config
}

// WSConfig holds websocket connection tunables.
type WSConfig struct {
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"54s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"8192"`
	SendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"256"`
}

// NeedsNATS reports whether any configured component talks to NATS.
func (c Config) NeedsNATS() bool {
	return c.EventsEnabled || c.StoreDriver == roomstore.DriverNATS
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	return Parse()
}

// Parse reads the configuration from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	drivers := []string{roomstore.DriverMemory, roomstore.DriverPostgres, roomstore.DriverSQLite, roomstore.DriverNATS}
	if !slices.Contains(drivers, c.StoreDriver) {
		return fmt.Errorf("STORE_DRIVER must be one of %s, got %q", strings.Join(drivers, "|"), c.StoreDriver)
	}
	if c.PersistMaxRetries < 0 {
		return errors.New("PERSIST_MAX_RETRIES cannot be negative")
	}
	if c.WS.PingInterval >= c.WS.ReadTimeout {
		return errors.New("WS_PING_INTERVAL must be shorter than WS_READ_TIMEOUT")
	}
	return nil
}

// LoadGameDefaults returns the room config new rooms start with. Fields
// missing from the file keep their built-in defaults. An empty path means
// built-in defaults only.
func LoadGameDefaults(path string) (models.RoomConfig, error) {
	cfg := models.DefaultRoomConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read game defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse game defaults: %w", err)
	}

	if cfg.TotalRounds <= 0 || cfg.RoundDuration <= 0 || cfg.ReviewDuration <= 0 || cfg.ResultsDuration <= 0 {
		return cfg, errors.New("game defaults: rounds and durations must be greater than zero")
	}
	if len(cfg.Categories) == 0 {
		return cfg, errors.New("game defaults: at least one category is required")
	}
	for i, c := range cfg.Categories {
		cfg.Categories[i] = strings.TrimSpace(c)
		if cfg.Categories[i] == "" {
			return cfg, errors.New("game defaults: category names cannot be blank")
		}
	}
	return cfg, nil
}
