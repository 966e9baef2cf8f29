package roomstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Supported values for Options.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNATS     = "nats"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	KVBucket    string
	// JetStream is required only for the nats driver.
	JetStream jetstream.JetStream
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		s, err := OpenPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverNATS:
		if opts.JetStream == nil {
			return nil, errors.New("nats store requires a JetStream context")
		}
		s, err := OpenNATSKV(ctx, opts.JetStream, opts.KVBucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
