package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/basta/go/internal/config"
	"github.com/mcdev12/basta/go/internal/roomstore"
)

func setupStore(ctx context.Context, cfg config.Config, js jetstream.JetStream) (roomstore.Store, error) {
	store, err := roomstore.Open(ctx, roomstore.Options{
		Driver:      cfg.StoreDriver,
		PostgresDSN: cfg.DB.DSN(),
		SQLitePath:  cfg.SQLitePath,
		KVBucket:    cfg.NATSKVBucket,
		JetStream:   js,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}

	event := log.Info().Str("driver", cfg.StoreDriver)
	switch cfg.StoreDriver {
	case roomstore.DriverPostgres:
		event = event.Str("host", cfg.DB.Host).Str("database", cfg.DB.Database)
	case roomstore.DriverSQLite:
		event = event.Str("path", cfg.SQLitePath)
	case roomstore.DriverNATS:
		event = event.Str("bucket", cfg.NATSKVBucket)
	}
	event.Msg("room store ready")
	return store, nil
}
