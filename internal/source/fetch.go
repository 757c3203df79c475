// Package source loads calendar documents: uploaded or local image files
// and remote URLs fetched with an on-disk HTTP cache.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "calscan/internal/log"
)

// MaxBodySize caps a fetched document; calendar scans are rarely above a
// few megabytes.
const MaxBodySize = 32 << 20

// Remote is a URL to fetch, with the ID used in logs and cache lookups.
type Remote struct {
	ID  string
	URL string
}

// FetchResult is one fetched document.
type FetchResult struct {
	Remote      Remote
	Body        []byte
	ContentType string
	// FromCache is set when the body came from disk (304, network error,
	// or non-OK status with a cached copy).
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads documents honoring ETag and Last-Modified, and falls
// back to the last good copy when the origin is unreachable.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		cacheDir: cacheDir,
	}
}

// Fetch retrieves r, using the cache for conditional requests.
func (f *Fetcher) Fetch(ctx context.Context, r Remote) (FetchResult, error) {
	if r.URL == "" {
		return FetchResult{}, errors.New("source: empty URL")
	}
	dir := f.entryDir(r.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("source: cache dir: %w", err)
	}

	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body"))
	fromCache := func() FetchResult {
		return FetchResult{Remote: r, Body: cached, ContentType: meta.ContentType, FromCache: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("source: build request: %w", err)
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("source fetch start", "id", r.ID, "url", redactURL(r.URL))
	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("source fetch failed, using cached body", err, "id", r.ID, "url", redactURL(r.URL))
			return fromCache(), nil
		}
		return FetchResult{}, fmt.Errorf("source: fetch %s: %w", r.ID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
		if err != nil {
			return FetchResult{}, fmt.Errorf("source: read %s: %w", r.ID, err)
		}
		if len(body) > MaxBodySize {
			return FetchResult{}, fmt.Errorf("source: %s exceeds %d bytes", r.ID, MaxBodySize)
		}
		next := cacheMeta{
			URL:          r.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			ContentType:  resp.Header.Get("Content-Type"),
		}
		if err := saveCache(dir, next, body); err != nil {
			appLog.Error("source cache save failed", err, "id", r.ID)
		}
		appLog.Info("source fetch success", "id", r.ID, "bytes", len(body))
		return FetchResult{Remote: r, Body: body, ContentType: next.ContentType}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, fmt.Errorf("source: %s: 304 without cached body", r.ID)
		}
		appLog.Info("source not modified; using cache", "id", r.ID)
		return fromCache(), nil

	default:
		if len(cached) > 0 {
			appLog.Error("source fetch non-OK, using cached body", errors.New(resp.Status), "id", r.ID, "status", resp.StatusCode)
			return fromCache(), nil
		}
		return FetchResult{}, fmt.Errorf("source: fetch %s: %s", r.ID, resp.Status)
	}
}

func (f *Fetcher) entryDir(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; calendar URLs often carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
