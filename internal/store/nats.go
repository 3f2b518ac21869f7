package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// DefaultNATSBucket is the object store bucket used when none is configured.
const DefaultNATSBucket = "TESTGEN_JOBS"

// objectBucket is the subset of jetstream.ObjectStore used by NATSStore.
type objectBucket interface {
	PutBytes(ctx context.Context, name string, data []byte) (*jetstream.ObjectInfo, error)
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
	List(ctx context.Context, opts ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error)
	Status(ctx context.Context) (jetstream.ObjectStoreStatus, error)
}

// NATSStore keeps artifacts in a NATS JetStream object store bucket, one object per key.
// An object becomes visible only once all of its chunks are stored.
type NATSStore struct {
	nc     *nats.Conn
	bucket objectBucket
	logger *zap.Logger
}

// NATSOptions configures the NATS backend.
type NATSOptions struct {
	URL     string
	Bucket  string
	Timeout time.Duration
}

// NewNATSStore connects to NATS and creates the object store bucket if needed.
func NewNATSStore(ctx context.Context, opts NATSOptions, logger *zap.Logger) (*NATSStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	if opts.Bucket == "" {
		opts.Bucket = DefaultNATSBucket
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name("testgen-store"),
		nats.Timeout(opts.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	bucket, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      opts.Bucket,
		Description: "Test case generation job artifacts",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create/update object store: %w", err)
	}

	return &NATSStore{nc: nc, bucket: bucket, logger: logger}, nil
}

func newNATSStoreWithBucket(bucket objectBucket, logger *zap.Logger) *NATSStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSStore{bucket: bucket, logger: logger}
}

// Backend implements Store.
func (s *NATSStore) Backend() string {
	return "nats"
}

// Write implements Store.
func (s *NATSStore) Write(ctx context.Context, jobID string, kind Kind, content []byte) error {
	key, err := Key(jobID, kind)
	if err != nil {
		return err
	}
	if _, err := s.bucket.PutBytes(ctx, key, content); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Read implements Store.
func (s *NATSStore) Read(ctx context.Context, jobID string, kind Kind) ([]byte, error) {
	key, err := Key(jobID, kind)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return data, nil
}

// List implements Store.
func (s *NATSStore) List(ctx context.Context) ([]string, error) {
	infos, err := s.bucket.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list objects: %w", err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		keys = append(keys, info.Name)
	}
	return jobIDsFromKeys(keys), nil
}

// Ping implements Store.
func (s *NATSStore) Ping(ctx context.Context) error {
	if s.nc != nil && !s.nc.IsConnected() {
		return fmt.Errorf("nats connection status: %s", s.nc.Status())
	}
	if _, err := s.bucket.Status(ctx); err != nil {
		return fmt.Errorf("object store status: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *NATSStore) Close() error {
	if s.nc == nil {
		return nil
	}
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
