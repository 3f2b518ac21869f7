// Package github resolves mapping sources hosted on GitHub and publishes
// derived artifacts back to a repository through the contents API.
package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jonathan/mapping-testgen/internal/fetch"
)

// ErrEmptySource is returned when a source resolves to no content.
var ErrEmptySource = errors.New("source contains no content")

const (
	rawHost = "raw.githubusercontent.com"
	webHost = "github.com"
	apiHost = "api.github.com"
)

// Source fetches mapping CSV content from a URL. GitHub blob links are
// rewritten to their raw form and rendered HTML tables are converted to CSV.
type Source struct {
	opts       *fetch.Options
	authClient *http.Client
	logger     *zap.Logger
}

// NewSource creates a Source. When token is non-empty, requests to GitHub
// hosts carry it as a bearer token; other hosts never see it.
func NewSource(token string, opts *fetch.Options, logger *zap.Logger) *Source {
	if opts == nil {
		opts = fetch.DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{opts: opts, logger: logger}
	if token != "" {
		s.authClient = newAuthClient(context.Background(), token, opts)
	}
	return s
}

// FetchCSV returns the CSV text behind rawURL.
func (s *Source) FetchCSV(ctx context.Context, rawURL string) (string, error) {
	target := RawURL(rawURL)

	opts := *s.opts
	if s.authClient != nil && isGitHubHost(target) {
		opts.Client = s.authClient
	}

	result, err := fetch.URL(ctx, target, &opts)
	if err != nil {
		return "", err
	}

	content := string(result.Body)
	if result.IsHTML() {
		content, err = fetch.TableCSV(content)
		if err != nil {
			return "", &fetch.Error{URL: target, Message: "HTML page has no CSV table", Cause: err}
		}
	}

	if strings.TrimSpace(content) == "" {
		return "", &fetch.Error{URL: target, Message: "empty response", Cause: ErrEmptySource}
	}

	s.logger.Debug("fetched mapping source",
		zap.String("url", rawURL),
		zap.String("resolved_url", target),
		zap.Int("bytes", len(content)),
	)
	return content, nil
}

// RawURL rewrites github.com/{owner}/{repo}/blob/{ref}/{path} to the
// raw.githubusercontent.com equivalent. Any other URL is returned unchanged.
func RawURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Host, webHost) && !strings.EqualFold(u.Host, "www."+webHost) {
		return rawURL
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 5 || (parts[2] != "blob" && parts[2] != "raw") {
		return rawURL
	}

	raw := url.URL{
		Scheme: "https",
		Host:   rawHost,
		Path:   "/" + strings.Join(append(parts[:2:2], parts[3:]...), "/"),
	}
	return raw.String()
}

func isGitHubHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case rawHost, webHost, "www." + webHost, apiHost:
		return true
	}
	return false
}

func newAuthClient(ctx context.Context, token string, opts *fetch.Options) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	if opts != nil {
		client.Timeout = opts.Timeout
	}
	return client
}
