package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	key, err := Key("abc", KindStatus)
	require.NoError(t, err)
	assert.Equal(t, "jobs/abc/status.json", key)

	key, err = Key("abc", KindOutput)
	require.NoError(t, err)
	assert.Equal(t, "jobs/abc/output.csv", key)

	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "../etc"} {
		_, err := Key(bad, KindStatus)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}

	_, err = Key("abc", Kind("secrets.txt"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	id, kind, ok := ParseKey("jobs/abc/results.json")
	require.True(t, ok)
	assert.Equal(t, "abc", id)
	assert.Equal(t, KindResults, kind)

	for _, bad := range []string{"jobs/abc", "other/abc/status.json", "jobs/abc/unknown.bin", "jobs/abc/x/status.json"} {
		_, _, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestJobIDsFromKeys(t *testing.T) {
	ids := jobIDsFromKeys([]string{
		"jobs/b/status.json",
		"jobs/a/status.json",
		"jobs/c/input.csv",
		"jobs/b/results.json",
		"garbage",
	})
	assert.Equal(t, []string{"a", "b"}, ids, "jobs without a status key are not listed")
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Read(ctx, "job-1", KindStatus)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.Write(ctx, "job-1", KindStatus, []byte(`{"status":"pending"}`)))
	require.NoError(t, s.Write(ctx, "job-1", KindStatus, []byte(`{"status":"processing"}`)))
	require.NoError(t, s.Write(ctx, "job-2", KindInput, []byte("a,b\n")))
	require.NoError(t, s.Write(ctx, "job-3", KindInput, []byte("a,b\n")))
	require.NoError(t, s.Write(ctx, "job-3", KindMetadata, []byte("{}")))
	require.NoError(t, s.Write(ctx, "job-2", KindStatus, []byte(`{"status":"pending"}`)))

	got, err := s.Read(ctx, "job-1", KindStatus)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"processing"}`, string(got))

	_, err = s.Read(ctx, "job-1", KindResults)
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1", "job-2"}, ids)

	assert.ErrorIs(t, s.Write(ctx, "../x", KindStatus, nil), ErrInvalidKey)
	_, err = s.Read(ctx, "a/b", KindStatus)
	assert.ErrorIs(t, err, ErrInvalidKey)

	assert.NoError(t, s.Ping(ctx))
}
