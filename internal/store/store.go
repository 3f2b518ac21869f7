// Package store provides durable, per-job artifact storage.
//
// Every artifact lives under jobs/{id}/{file}. Writes are atomic per key:
// a reader observes either the previous value or the new one, never a partial write.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Kind identifies one of the per-job artifacts.
type Kind string

// Artifact kinds. The values are the file names in the key layout.
const (
	KindStatus   Kind = "status.json"
	KindMetadata Kind = "metadata.json"
	KindInput    Kind = "input.csv"
	KindResults  Kind = "results.json"
	KindOutput   Kind = "output.csv"
)

// Kinds lists every artifact kind in write order.
var Kinds = []Kind{KindInput, KindMetadata, KindStatus, KindResults, KindOutput}

// Valid reports whether k is a known artifact kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Prefix is the root of the key layout.
const Prefix = "jobs"

// Common store errors.
var (
	// ErrNotFound is returned when an artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidKey is returned for job ids or kinds that cannot form a key.
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store is the persistence contract used by the orchestrator.
type Store interface {
	// Write atomically replaces the artifact content.
	Write(ctx context.Context, jobID string, kind Kind, content []byte) error
	// Read returns the artifact content or ErrNotFound.
	Read(ctx context.Context, jobID string, kind Kind) ([]byte, error)
	// List returns, in sorted order, the ids of jobs that have a status record.
	// Artifacts left behind by a submission that never wrote its status are skipped.
	List(ctx context.Context) ([]string, error)
	// Ping checks connectivity to the backend without mutating state.
	Ping(ctx context.Context) error
	// Backend names the implementation, for health reporting.
	Backend() string
	// Close releases backend resources.
	Close() error
}

// ValidateJobID rejects ids that could escape the key layout.
func ValidateJobID(jobID string) error {
	if jobID == "" || jobID == "." || jobID == ".." ||
		strings.ContainsAny(jobID, `/\`) || strings.ContainsRune(jobID, 0) {
		return fmt.Errorf("%w: job id %q", ErrInvalidKey, jobID)
	}
	return nil
}

// Key builds the storage key for an artifact: jobs/{id}/{kind}.
func Key(jobID string, kind Kind) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: kind %q", ErrInvalidKey, kind)
	}
	return path.Join(Prefix, jobID, string(kind)), nil
}

// ParseKey splits a storage key back into job id and kind.
func ParseKey(key string) (string, Kind, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != Prefix {
		return "", "", false
	}
	kind := Kind(parts[2])
	if ValidateJobID(parts[1]) != nil || !kind.Valid() {
		return "", "", false
	}
	return parts[1], kind, true
}

// jobIDsFromKeys extracts the distinct, sorted ids of jobs with a status key.
func jobIDsFromKeys(keys []string) []string {
	seen := make(map[string]struct{})
	for _, k := range keys {
		if id, kind, ok := ParseKey(k); ok && kind == KindStatus {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
