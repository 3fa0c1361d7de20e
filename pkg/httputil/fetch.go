package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/buildinfo"
	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
)

// Defaults for Fetcher.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
	DefaultTTL      = 24 * time.Hour
	// DefaultMaxBytes caps Fetch downloads; streamed bodies are not capped.
	DefaultMaxBytes = 1 << 30
)

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetcher downloads inputs. The zero value is not usable; call NewFetcher.
type Fetcher struct {
	Client   *http.Client
	Cache    cache.Cache
	TTL      time.Duration
	Attempts int
	Delay    time.Duration
	MaxBytes int64
	Logger   *log.Logger
}

// NewFetcher returns a fetcher caching whole downloads in c. A nil c
// disables caching.
func NewFetcher(c cache.Cache, logger *log.Logger) *Fetcher {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{
		Client:   &http.Client{Timeout: 0},
		Cache:    c,
		TTL:      DefaultTTL,
		Attempts: DefaultAttempts,
		Delay:    DefaultDelay,
		MaxBytes: DefaultMaxBytes,
		Logger:   logger,
	}
}

// Open starts a GET and returns the response body once a 2xx status
// arrives. size is the Content-Length, or -1 when unknown. The caller
// closes the body.
func (f *Fetcher) Open(ctx context.Context, url string) (body io.ReadCloser, size int64, err error) {
	b := errors.Backoff{
		Attempts: f.Attempts,
		Delay:    f.Delay,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			f.Logger.Warn("retrying input download", "url", url, "attempt", attempt, "wait", wait, "error", err)
		},
	}
	err = errors.Retry(ctx, b, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "request %s", url)
		}
		req.Header.Set("User-Agent", "canopy/"+buildinfo.Version)
		resp, err := f.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Transient(errors.Wrap(errors.ErrCodeStreamAbsent, err, "fetch %s", url))
		}
		if err := checkStatus(resp, url); err != nil {
			resp.Body.Close()
			return err
		}
		body, size = resp.Body, resp.ContentLength
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return body, size, nil
}

// Fetch downloads url whole, from the cache when possible. hit reports a
// cache hit.
func (f *Fetcher) Fetch(ctx context.Context, url string) (data []byte, hit bool, err error) {
	key := "http:" + url
	if data, hit, err := f.Cache.Get(ctx, key); err == nil && hit {
		return data, true, nil
	}

	start := time.Now()
	body, _, err := f.Open(ctx, url)
	if err != nil {
		return nil, false, err
	}
	defer body.Close()
	data, err = io.ReadAll(io.LimitReader(body, f.MaxBytes+1))
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStreamAbsent, err, "read %s", url)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "%s exceeds %d bytes", url, f.MaxBytes)
	}
	f.Logger.Info("downloaded input", "url", url, "bytes", len(data), "duration", time.Since(start))

	if err := f.Cache.Set(ctx, key, data, f.TTL); err != nil {
		f.Logger.Warn("cache write failed", "error", err)
	}
	return data, false, nil
}

func checkStatus(resp *http.Response, url string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errors.Transient(errors.New(errors.ErrCodeStreamAbsent, "fetch %s: %s", url, resp.Status))
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "fetch %s: %s", url, resp.Status)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "fetch %s: %s", url, resp.Status)
	}
}

func (f *Fetcher) String() string {
	return fmt.Sprintf("fetcher(attempts=%d, ttl=%s)", f.Attempts, f.TTL)
}
