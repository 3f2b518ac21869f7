package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Backend names.
const (
	BackendAuto     = "auto"
	BackendLocal    = "local"
	BackendNATS     = "nats"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	NATS        NATSOptions
	DatabaseURL string
}

// ResolveBackend returns the backend to use. "auto" (or empty) probes for
// credentials: a NATS URL selects nats, a database URL selects postgres,
// otherwise the local filesystem is used.
func ResolveBackend(opts Options) string {
	switch b := strings.ToLower(strings.TrimSpace(opts.Backend)); b {
	case "", BackendAuto:
		switch {
		case opts.NATS.URL != "":
			return BackendNATS
		case opts.DatabaseURL != "":
			return BackendPostgres
		default:
			return BackendLocal
		}
	default:
		return b
	}
}

// Open resolves the backend once and returns the Store used for the life of the process.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := ResolveBackend(opts)
	logger.Info("opening job store", zap.String("backend", backend))

	switch backend {
	case BackendLocal:
		return NewLocalStore(opts.Dir, logger)
	case BackendNATS:
		return NewNATSStore(ctx, opts.NATS, logger)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires a database URL")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
