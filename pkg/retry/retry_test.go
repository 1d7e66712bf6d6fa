package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "friendbot/pkg/errors"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(2)
		if d < 140*time.Millisecond || d > 260*time.Millisecond {
			t.Fatalf("delay %v outside jitter range", d)
		}
		delays[d] = true
	}
	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestRetryWithSuccess(t *testing.T) {
	rec := &sleepRecorder{}
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Do(context.Background(), op, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Sleep:       rec.sleep,
	})
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(rec.delays) != 2 {
		t.Errorf("Expected 2 waits, got %d", len(rec.delays))
	}
}

func TestRetryDoesNotWaitAfterLastAttempt(t *testing.T) {
	rec := &sleepRecorder{}
	attempts := 0
	rateLimited := errs.New(errs.ErrorTypeRateLimit, 429, "slow down")

	err := Do(context.Background(), func() error {
		attempts++
		return rateLimited
	}, &Config{
		MaxAttempts: 2,
		Backoff:     &ConstantBackoff{Delay: 650 * time.Second},
		RetryIf:     errs.IsRateLimit,
		Sleep:       rec.sleep,
	})

	if err == nil {
		t.Fatal("Expected error when max attempts exceeded")
	}
	if !errs.IsRateLimit(err) {
		t.Errorf("Expected wrapped rate limit error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 650*time.Second {
		t.Errorf("Expected exactly one 650s wait, got %v", rec.delays)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	rec := &sleepRecorder{}
	attempts := 0
	authError := errs.New(errs.ErrorTypeAuth, 401, "authentication required")

	err := Do(context.Background(), func() error {
		attempts++
		return authError
	}, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Second}, Sleep: rec.sleep})

	if !errors.Is(err, authError) {
		t.Errorf("Expected auth error to be returned as-is, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if len(rec.delays) != 0 {
		t.Errorf("Expected no waits, got %v", rec.delays)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(ctx, func() error {
			attempts++
			return errors.New("temporary error")
		}, &Config{
			MaxAttempts: 5,
			Backoff:     &ConstantBackoff{Delay: time.Hour},
			RetryIf:     func(error) bool { return true },
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "reset"), true},
		{"server", errs.New(errs.ErrorTypeServerError, 503, "unavailable"), true},
		{"not found", errs.New(errs.ErrorTypeNotFound, 404, "gone"), false},
		{"canceled", context.Canceled, false},
		{"unknown", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDoWithResult(t *testing.T) {
	rec := &sleepRecorder{}
	attempts := 0

	result, err := DoWithResult(context.Background(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "token", nil
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
		Sleep:       rec.sleep,
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != "token" {
		t.Errorf("Expected token, got %q", result)
	}
}
