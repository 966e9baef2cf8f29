package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/basta/go/internal/config"
	"github.com/mcdev12/basta/go/internal/events"
	"github.com/mcdev12/basta/go/internal/gateway"
	"github.com/mcdev12/basta/go/internal/models"
	"github.com/mcdev12/basta/go/internal/roomstore"
	"github.com/mcdev12/basta/go/internal/session"
)

type Services struct {
	Gateway *gateway.Service
	Events  *events.Counters

	store roomstore.Store
	nc    *nats.Conn
}

func setupServices(ctx context.Context, cfg config.Config, game models.RoomConfig) (*Services, error) {
	// NATS → store + publisher → room actors → gateway
	services := &Services{}

	var js jetstream.JetStream
	if cfg.NeedsNATS() {
		nc, err := setupNATSConnection(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		services.nc = nc

		js, err = jetstream.New(nc)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
	}

	store, err := setupStore(ctx, cfg, js)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.store = store

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.EventsEnabled {
		natsPublisher, err := events.NewNATSPublisher(ctx, js, cfg.EventsStream, cfg.EventsSubjectPrefix)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("set up event publisher: %w", err)
		}
		publisher = natsPublisher
		log.Info().
			Str("stream", cfg.EventsStream).
			Str("subject_prefix", cfg.EventsSubjectPrefix).
			Msg("publishing room events")
	}

	services.Events = events.NewCounters()
	publisher = events.NewMetricPublisher(publisher, services.Events)

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.WriteTimeout = cfg.WS.WriteTimeout
	connConfig.ReadTimeout = cfg.WS.ReadTimeout
	connConfig.PingInterval = cfg.WS.PingInterval
	connConfig.MaxMessageSize = cfg.WS.MaxMessageSize
	connConfig.SendBuffer = cfg.WS.SendBuffer

	services.Gateway = gateway.NewService(connConfig, session.Options{
		Store:             store,
		Publisher:         publisher,
		Game:              game,
		PersistMaxRetries: cfg.PersistMaxRetries,
		PersistRetryDelay: cfg.PersistRetryDelay,
	})
	return services, nil
}

// Close releases the store and the NATS connection.
func (s *Services) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close room store")
		}
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Error().Err(err).Msg("failed to drain NATS connection")
		}
	}
}

func setupNATSConnection(natsURL string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("basta-server"),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")
	return nc, nil
}
