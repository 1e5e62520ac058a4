package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/metrics"
)

// DefaultURLTTL is the lifetime of a file access token when the caller
// does not ask for one.
const DefaultURLTTL = 24 * time.Hour

var errUnauthorized = errors.New("unauthorized")

// TokenSource hands out delegated tokens per principal.
type TokenSource interface {
	Token(ctx context.Context, principalID string) (string, error)
	Invalidate(principalID string)
}

// Config holds the CDN endpoint and client tuning.
type Config struct {
	BaseURL               string
	APIKey                string
	Timeout               time.Duration
	HealthTimeout         time.Duration
	FileInfoTTL           time.Duration
	AvailabilityBatchSize int
	AvailabilityPause     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 5 * time.Second
	}
	if c.FileInfoTTL <= 0 {
		c.FileInfoTTL = 5 * time.Minute
	}
	if c.AvailabilityBatchSize <= 0 {
		c.AvailabilityBatchSize = 10
	}
	if c.AvailabilityPause < 0 {
		c.AvailabilityPause = 0
	}
	return c
}

// Client talks to the CDN REST API.
//
// Lookups (GetFileInfo, GetFileURL, CheckAvailability) never fail for
// expected CDN problems: not found, timeouts, non-2xx answers and token
// mint failures all come back as "no result" and are logged. Unexpected
// errors such as a malformed response body are returned.
type Client struct {
	cfg       Config
	base      string
	http      *http.Client
	tokens    TokenSource
	cache     InfoCache
	retention domain.RetentionPolicy
	logger    *slog.Logger
}

// NewClient creates a CDN client. A nil cache disables descriptor caching
// across calls by falling back to a private in-memory cache.
func NewClient(cfg Config, tokens TokenSource, cache InfoCache, retention domain.RetentionPolicy, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid cdn base url %q", cfg.BaseURL)
	}
	if cache == nil {
		cache = NewMemoryInfoCache()
	}
	if retention == nil {
		retention = domain.DefaultRetentionPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:       cfg,
		base:      strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{},
		tokens:    tokens,
		cache:     cache,
		retention: retention,
		logger:    logger.With("component", "cdn"),
	}, nil
}

// GetFileInfo returns the descriptor of path as seen by principalID, or nil
// when the CDN has no answer. Only found descriptors are cached.
func (c *Client) GetFileInfo(ctx context.Context, path, principalID string) (*FileInfo, error) {
	key := cacheKey(path, principalID)
	if info, ok := c.cache.Get(ctx, key); ok {
		metrics.FileInfoCacheHits.Inc()
		return info, nil
	}

	var info FileInfo
	headers := map[string]string{}
	if principalID != "" {
		headers["X-Principal-Id"] = principalID
	}

	err := c.do(ctx, "file_info", c.cfg.Timeout, http.MethodGet, "/files/info/"+escapePath(path), nil, headers, &info, http.StatusOK)
	switch {
	case err == nil:
	case errors.Is(err, errpkg.ErrCDNNotFound):
		c.logger.Debug("File not found on CDN", "path", path)
		return nil, nil
	case errors.Is(err, errpkg.ErrCDNUnavailable):
		c.logger.Warn("File info lookup failed", "path", path, "error", err)
		return nil, nil
	default:
		return nil, err
	}

	if info.Path == "" {
		info.Path = path
	}
	c.cache.Set(ctx, key, &info, c.cfg.FileInfoTTL)
	return &info, nil
}

// GetFileURL returns a download URL for path. A permanent URL from the
// descriptor wins; otherwise an access token is minted for principalID and
// appended to the direct file URL. Without a principal the plain direct
// URL is returned. An empty string means no URL could be produced.
func (c *Client) GetFileURL(ctx context.Context, path, principalID string, ttl time.Duration) (string, error) {
	info, err := c.GetFileInfo(ctx, path, principalID)
	if err != nil {
		return "", err
	}
	if info != nil && info.URL != "" {
		return info.URL, nil
	}

	direct := c.base + "/files/" + escapePath(path)
	if principalID == "" {
		return direct, nil
	}

	token, err := c.fileAccessToken(ctx, path, principalID, ttl)
	if err != nil {
		if errors.Is(err, errpkg.ErrTokenMintFailure) ||
			errors.Is(err, errpkg.ErrCDNUnavailable) ||
			errors.Is(err, errpkg.ErrCDNNotFound) {
			c.logger.Warn("File access token unavailable", "path", path, "principal_id", principalID, "error", err)
			return "", nil
		}
		return "", err
	}

	return direct + "?token=" + url.QueryEscape(token), nil
}

func (c *Client) fileAccessToken(ctx context.Context, path, principalID string, ttl time.Duration) (string, error) {
	if c.tokens == nil {
		return "", fmt.Errorf("%w: no token source configured", errpkg.ErrTokenMintFailure)
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	delegated, err := c.tokens.Token(ctx, principalID)
	if err != nil {
		return "", err
	}

	body := fileAccessBody{
		FilePath:      path,
		PrincipalID:   principalID,
		DurationHours: int(math.Ceil(ttl.Hours())),
	}
	headers := map[string]string{"Authorization": "Bearer " + delegated}

	var resp fileAccessResponse
	err = c.do(ctx, "file_access", c.cfg.Timeout, http.MethodPost, "/auth/file-access", body, headers, &resp, http.StatusOK, http.StatusCreated)
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			c.tokens.Invalidate(principalID)
		}
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", errpkg.ErrCDNUnavailable)
	}
	return resp.AccessToken, nil
}

// CreateCollection bundles files into a CDN collection that expires after
// the retention window of the request tier.
func (c *Client) CreateCollection(ctx context.Context, req CollectionRequest) (*Collection, error) {
	if len(req.Files) == 0 {
		return nil, errors.New("collection needs at least one file")
	}

	tier := req.Tier
	if !tier.Valid() {
		tier = domain.TierFree
	}
	window := c.retention.Window(tier)

	name := req.Name
	if name == "" {
		name = "collection-" + time.Now().UTC().Format("20060102-150405")
	}

	body := collectionBody{
		Files:        req.Files,
		Name:         name,
		ExpiresHours: int(math.Ceil(window.Hours())),
		Tier:         string(tier),
	}
	headers := map[string]string{}
	if req.PrincipalID != "" {
		headers["X-Principal-Id"] = req.PrincipalID
	}

	var col Collection
	if err := c.do(ctx, "create_collection", c.cfg.Timeout, http.MethodPost, "/collections", body, headers, &col, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	if col.Name == "" {
		col.Name = name
	}
	if col.ExpiresAt.IsZero() {
		col.ExpiresAt = time.Now().Add(window)
	}

	c.logger.Info("Collection created", "collection_id", col.ID, "files", len(req.Files), "tier", tier)
	return &col, nil
}

// HealthCheck probes the CDN with the short health timeout.
func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, "health", c.cfg.HealthTimeout, http.MethodGet, "/health", nil, nil, &status, http.StatusOK); err != nil {
		return nil, err
	}
	if status.Status == "" {
		status.Status = "ok"
	}
	return &status, nil
}

// do performs one JSON request. Transport failures, timeouts and
// unexpected statuses wrap ErrCDNUnavailable; 404 wraps ErrCDNNotFound.
func (c *Client) do(ctx context.Context, op string, timeout time.Duration, method, path string,
	body any, headers map[string]string, out any, want ...int) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.CDNRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CDNRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%w: %s: %v", errpkg.ErrCDNUnavailable, op, err)
	}
	defer resp.Body.Close()

	if !statusIn(resp.StatusCode, want) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		metrics.CDNRequests.WithLabelValues(op, outcome(resp.StatusCode)).Inc()
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", errpkg.ErrCDNNotFound, op)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", errpkg.ErrCDNUnavailable, op, errUnauthorized)
		default:
			return fmt.Errorf("%w: %s: unexpected status %d", errpkg.ErrCDNUnavailable, op, resp.StatusCode)
		}
	}
	metrics.CDNRequests.WithLabelValues(op, "ok").Inc()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func statusIn(code int, want []int) bool {
	for _, w := range want {
		if code == w {
			return true
		}
	}
	return false
}

func outcome(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "not_found"
	case code >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

func escapePath(path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
