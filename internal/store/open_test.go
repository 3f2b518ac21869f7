package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBackend(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "auto without credentials", opts: Options{}, want: BackendLocal},
		{name: "auto with nats", opts: Options{NATS: NATSOptions{URL: "nats://localhost:4222"}, DatabaseURL: "postgres://x"}, want: BackendNATS},
		{name: "auto with database", opts: Options{Backend: "auto", DatabaseURL: "postgres://x"}, want: BackendPostgres},
		{name: "explicit local wins", opts: Options{Backend: "LOCAL", NATS: NATSOptions{URL: "nats://x"}}, want: BackendLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBackend(tt.opts))
		})
	}
}

func TestOpen_Local(t *testing.T) {
	s, err := Open(context.Background(), Options{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "local", s.Backend())
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "s3"}, nil)
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = Open(context.Background(), Options{Backend: "postgres"}, nil)
	assert.ErrorContains(t, err, "requires a database URL")
}
