package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Integration(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, databaseURL, nil)
	require.NoError(t, err)
	defer s.Close()

	id := uuid.NewString()
	_, err = s.Read(ctx, id, KindStatus)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(ctx, id, KindStatus, []byte(`{"status":"pending"}`)))
	require.NoError(t, s.Write(ctx, id, KindStatus, []byte(`{"status":"completed"}`)))

	got, err := s.Read(ctx, id, KindStatus)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"completed"}`, string(got))

	orphan := uuid.NewString()
	require.NoError(t, s.Write(ctx, orphan, KindInput, []byte("a,b\n")))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
	assert.NotContains(t, ids, orphan)
	assert.NoError(t, s.Ping(ctx))

	_, err = s.pool.Exec(ctx, `DELETE FROM job_artifacts WHERE job_id = ANY($1)`, []string{id, orphan})
	require.NoError(t, err)
}
