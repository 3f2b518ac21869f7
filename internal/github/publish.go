package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAPIBaseURL is the public GitHub REST endpoint.
const DefaultAPIBaseURL = "https://api.github.com"

// ErrNotConfigured is returned when publishing is attempted without a token.
var ErrNotConfigured = errors.New("github publisher is not configured")

// ErrInvalidRequest is wrapped by errors for publish requests that are
// rejected before any call to GitHub.
var ErrInvalidRequest = errors.New("invalid publish request")

// APIError is a non-success response from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.StatusCode, e.Message)
}

// PublishRequest describes one file to create or update.
type PublishRequest struct {
	// Repo is "owner/name".
	Repo    string
	Path    string
	Branch  string
	Message string
	Content []byte
}

// PublishResult describes the commit created by a publish.
type PublishResult struct {
	Path      string `json:"path"`
	HTMLURL   string `json:"html_url"`
	CommitSHA string `json:"commit_sha"`
}

// Publisher writes files to a repository through the GitHub contents API.
type Publisher struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// NewPublisher creates a Publisher. A Publisher built without a token
// reports ErrNotConfigured from every call.
func NewPublisher(opts PublisherOptions, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	p := &Publisher{baseURL: base, logger: logger}
	if opts.Token != "" {
		p.client = newAuthClient(context.Background(), opts.Token, nil)
		p.client.Timeout = opts.Timeout
		if p.client.Timeout == 0 {
			p.client.Timeout = 30 * time.Second
		}
	}
	return p
}

// Configured reports whether the publisher has credentials.
func (p *Publisher) Configured() bool {
	return p != nil && p.client != nil
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		Path    string `json:"path"`
		HTMLURL string `json:"html_url"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Publish creates or replaces req.Path in req.Repo.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	if err := validateRepo(req.Repo); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}

	endpoint := p.contentsURL(req.Repo, req.Path)

	sha, err := p.existingSHA(ctx, endpoint, req.Branch)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(putRequest{
		Message: req.Message,
		Content: base64.StdEncoding.EncodeToString(req.Content),
		Branch:  req.Branch,
		SHA:     sha,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode publish request: %w", err)
	}

	var resp putResponse
	if err := p.do(ctx, http.MethodPut, endpoint, bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}

	p.logger.Info("published file to github",
		zap.String("repo", req.Repo),
		zap.String("path", resp.Content.Path),
		zap.String("commit", resp.Commit.SHA),
	)
	return &PublishResult{
		Path:      resp.Content.Path,
		HTMLURL:   resp.Content.HTMLURL,
		CommitSHA: resp.Commit.SHA,
	}, nil
}

func (p *Publisher) existingSHA(ctx context.Context, endpoint, branch string) (string, error) {
	target := endpoint
	if branch != "" {
		target += "?ref=" + url.QueryEscape(branch)
	}

	var existing contentsResponse
	err := p.do(ctx, http.MethodGet, target, nil, &existing)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return existing.SHA, nil
}

func (p *Publisher) contentsURL(repo, filePath string) string {
	segments := strings.Split(strings.Trim(filePath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/contents/%s", p.baseURL, repo, strings.Join(segments, "/"))
}

func (p *Publisher) do(ctx context.Context, method, target string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read github response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		if msg.Message == "" {
			msg.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode github response: %w", err)
		}
	}
	return nil
}

func validateRepo(repo string) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: repo must be in owner/name form, got %q", ErrInvalidRequest, repo)
	}
	return nil
}
