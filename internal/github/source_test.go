package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/mapping-testgen/internal/fetch"
)

func TestRawURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "https://github.com/acme/maps/blob/main/fhir/patient.csv",
			want: "https://raw.githubusercontent.com/acme/maps/main/fhir/patient.csv",
		},
		{
			in:   "https://www.github.com/acme/maps/raw/v1.2/patient.csv",
			want: "https://raw.githubusercontent.com/acme/maps/v1.2/patient.csv",
		},
		{
			in:   "https://raw.githubusercontent.com/acme/maps/main/patient.csv",
			want: "https://raw.githubusercontent.com/acme/maps/main/patient.csv",
		},
		{in: "https://github.com/acme/maps", want: "https://github.com/acme/maps"},
		{in: "https://github.com/acme/maps/tree/main/dir", want: "https://github.com/acme/maps/tree/main/dir"},
		{in: "https://example.com/a/b/blob/c/d.csv", want: "https://example.com/a/b/blob/c/d.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RawURL(tt.in))
		})
	}
}

func TestIsGitHubHost(t *testing.T) {
	assert.True(t, isGitHubHost("https://raw.githubusercontent.com/a/b/c"))
	assert.True(t, isGitHubHost("https://api.github.com/repos"))
	assert.False(t, isGitHubHost("https://github.com.evil.example/x"))
	assert.False(t, isGitHubHost("http://127.0.0.1:8080/x.csv"))
}

func TestSource_FetchCSV(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain.csv", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "token must not leak to other hosts")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Source_Field,FHIR_Attribute\nname,name\n"))
	})
	mux.HandleFunc("/rendered", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><table><tr><th>Source_Field</th><th>FHIR_Attribute</th></tr><tr><td>dob</td><td>birthDate</td></tr></table></html>`))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>no table</body></html>`))
	})
	mux.HandleFunc("/empty.csv", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("  \n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := NewSource("secret-token", nil, nil)
	ctx := context.Background()

	content, err := src.FetchCSV(ctx, server.URL+"/plain.csv")
	require.NoError(t, err)
	assert.Equal(t, "Source_Field,FHIR_Attribute\nname,name\n", content)

	content, err = src.FetchCSV(ctx, server.URL+"/rendered")
	require.NoError(t, err)
	assert.Equal(t, "Source_Field,FHIR_Attribute\ndob,birthDate\n", content)

	_, err = src.FetchCSV(ctx, server.URL+"/page")
	assert.ErrorIs(t, err, fetch.ErrNoTable)

	_, err = src.FetchCSV(ctx, server.URL+"/empty.csv")
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = src.FetchCSV(ctx, server.URL+"/missing")
	var fetchErr *fetch.Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	_, err = src.FetchCSV(ctx, "not a url")
	assert.True(t, errors.As(err, &fetchErr))
}
