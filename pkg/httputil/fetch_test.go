package httputil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
)

func testFetcher(t *testing.T) *Fetcher {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := NewFetcher(c, log.New(io.Discard))
	f.Delay = time.Millisecond
	return f
}

func TestIsURL(t *testing.T) {
	for s, want := range map[string]bool{
		"https://example.org/tree.nwk": true,
		"http://localhost:8080/x":      true,
		"tree.nwk":                     false,
		"(A,B);":                       false,
		"ftp://example.org/tree":       false,
	} {
		if got := IsURL(s); got != want {
			t.Errorf("IsURL(%q) = %v", s, got)
		}
	}
}

func TestFetchCachesDownloads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, "(A:1,B:2)C;")
	}))
	defer srv.Close()

	f := testFetcher(t)
	ctx := context.Background()
	data, hit, err := f.Fetch(ctx, srv.URL+"/tree.nwk")
	if err != nil || hit || string(data) != "(A:1,B:2)C;" {
		t.Fatalf("first Fetch = %q, %v, %v", data, hit, err)
	}
	data, hit, err = f.Fetch(ctx, srv.URL+"/tree.nwk")
	if err != nil || !hit || string(data) != "(A:1,B:2)C;" {
		t.Fatalf("second Fetch = %q, %v, %v", data, hit, err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times", calls.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	body, _, err := testFetcher(t).Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	got, _ := io.ReadAll(body)
	if string(got) != "ok" || calls.Load() != 3 {
		t.Errorf("body = %q after %d calls", got, calls.Load())
	}
}

func TestFetchClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer srv.Close()

	f := testFetcher(t)
	if _, _, err := f.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("404: err = %v", err)
	}
	if _, _, err := f.Fetch(context.Background(), srv.URL+"/secret"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("403: err = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("client errors were retried: %d calls", calls.Load())
	}
}

func TestFetchSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	defer srv.Close()

	f := testFetcher(t)
	f.MaxBytes = 10
	if _, _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestFetchGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := testFetcher(t)
	f.Attempts = 2
	_, _, err := f.Open(context.Background(), srv.URL)
	if !errors.Is(err, errors.ErrCodeStreamAbsent) || errors.IsTransient(err) {
		t.Errorf("err = %v, want STREAM_ABSENT", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
}
