package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestDoValRetriesTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("status 503"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoValNoRetryOnPermanent(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		return "", eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		return "", NewTransientError(eris.New("still down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastRetry(5), func(context.Context) (string, error) {
		calls++
		cancel()
		return "", NewTransientError(eris.New("down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		return "", NewTransientError(eris.New("down"), 503)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoffDoubling(t *testing.T) {
	cfg := applyDefaults(RetryConfig{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second})
	assert.Equal(t, 100*time.Millisecond, backoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, backoff(2, cfg))
	assert.Equal(t, 400*time.Millisecond, backoff(3, cfg))
	assert.Equal(t, 800*time.Millisecond, backoff(4, cfg))
	assert.Equal(t, time.Second, backoff(5, cfg), "capped at MaxBackoff")
}

func TestDoWrapsDoVal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(2), func(context.Context) error {
		calls++
		if calls == 1 {
			return NewTransientError(eris.New("down"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
