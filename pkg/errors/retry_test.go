package errors

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	dropped := Transient(New(ErrCodeUnavailable, "connection reset"))
	permanent := New(ErrCodeInvalidInput, "bad key")
	fast := Backoff{Attempts: 3, Delay: time.Millisecond}

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantCode  Code
	}{
		{"success", 0, nil, 1, ""},
		{"permanent", 5, permanent, 1, ErrCodeInvalidInput},
		{"recovers", 1, dropped, 2, ""},
		{"exhausted", 5, dropped, 3, ErrCodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fast, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if GetCode(err) != tt.wantCode {
				t.Errorf("err = %v, want code %q", err, tt.wantCode)
			}
			if IsTransient(err) {
				t.Errorf("returned error still marked transient: %v", err)
			}
		})
	}
}

func TestRetryReportsWaits(t *testing.T) {
	var waits []time.Duration
	b := Backoff{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(_ int, _ error, wait time.Duration) { waits = append(waits, wait) },
	}
	_ = Retry(context.Background(), b, func() error { return Transient(errors.New("timeout")) })
	if len(waits) != 2 || waits[0] != time.Millisecond || waits[1] != 2*time.Millisecond {
		t.Errorf("waits = %v", waits)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, Backoff{Attempts: 5, Delay: time.Hour}, func() error {
		calls++
		return Transient(errors.New("connection refused"))
	})
	if calls != 1 || !Is(err, ErrCodeTimeout) || !errors.Is(err, context.Canceled) {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestTransient(t *testing.T) {
	if Transient(nil) != nil {
		t.Error("Transient(nil) != nil")
	}
	cause := New(ErrCodeStreamAbsent, "fetch: 503")
	err := Transient(cause)
	if !IsTransient(err) || IsTransient(cause) {
		t.Error("IsTransient mismatch")
	}
	if GetCode(err) != ErrCodeStreamAbsent || err.Error() != cause.Error() {
		t.Errorf("marked error = %v", err)
	}
}
