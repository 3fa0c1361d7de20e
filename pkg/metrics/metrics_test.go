package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/canopyviz/canopy/pkg/observability"
)

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.RenderHooks   = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)

func TestHooksUpdateCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	m.OnParseComplete(ctx, "newick", 10, time.Millisecond, nil)
	m.OnParseComplete(ctx, "newick", 0, time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(m.ParseTotal.WithLabelValues("newick", "ok")); got != 1 {
		t.Errorf("parse ok = %v", got)
	}
	if got := testutil.ToFloat64(m.ParseTotal.WithLabelValues("newick", "error")); got != 1 {
		t.Errorf("parse error = %v", got)
	}

	m.OnLayoutComplete(ctx, "polar", 120, 119, time.Millisecond, nil)
	if got := testutil.ToFloat64(m.LayoutPoints); got != 120 {
		t.Errorf("layout points = %v", got)
	}

	m.OnFrame(ctx, 4, 2000, 1000, 500, time.Millisecond)
	m.OnFrame(ctx, 4, 2000, 900, 0, time.Millisecond)
	if got := testutil.ToFloat64(m.Frames); got != 2 {
		t.Errorf("frames = %v", got)
	}
	if got := testutil.ToFloat64(m.FrameDrawn); got != 900 {
		t.Errorf("drawn = %v", got)
	}

	m.OnCacheHit(ctx, "file")
	m.OnCacheMiss(ctx, "file")
	m.OnCacheMiss(ctx, "file")
	m.OnCacheSet(ctx, "file", 4096)
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("file", "miss")); got != 2 {
		t.Errorf("misses = %v", got)
	}
	if got := testutil.ToFloat64(m.CacheBytes.WithLabelValues("file")); got != 4096 {
		t.Errorf("bytes = %v", got)
	}

	m.OnRequest(ctx, "GET", "/healthz")
	if got := testutil.ToFloat64(m.HTTPInFlight); got != 1 {
		t.Errorf("in flight = %v", got)
	}
	m.OnResponse(ctx, "GET", "/healthz", 200, time.Millisecond)
	if got := testutil.ToFloat64(m.HTTPInFlight); got != 0 {
		t.Errorf("in flight after = %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200")); got != 1 {
		t.Errorf("requests = %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.OnFrame(context.Background(), 1, 1, 1, 1, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "canopy_frames_total 1") {
		t.Errorf("metrics output missing frame counter:\n%s", body)
	}
}
