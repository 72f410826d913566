package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Message: slow down")))
	assert.True(t, IsRateLimitError(errors.New("Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New("quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("connection refused")))
	assert.False(t, IsRateLimitError(nil))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED")
	assert.InDelta(t, 45.387, ExtractRetryDelay(err).Seconds(), 0.001)

	assert.Equal(t, 12*time.Second, ExtractRetryDelay(errors.New("retryDelay: 12s")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(errors.New("no hint")))
	assert.Equal(t, time.Duration(0), ExtractRetryDelay(nil))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	assert.Equal(t, 45*time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, time.Duration(float64(45*time.Second)*1.5), cfg.CalculateBackoff(1, 0))
	assert.Equal(t, 90*time.Second, cfg.CalculateBackoff(4, 0), "capped at max backoff")
	assert.Equal(t, 15*time.Second, cfg.CalculateBackoff(0, 10*time.Second), "api delay plus buffer")
}

func TestBackoffForPlainErrors(t *testing.T) {
	cfg := NewDefaultRetryConfig()
	assert.Equal(t, 2*time.Second, cfg.backoffFor(0, errors.New("boom")))
	assert.Equal(t, 6*time.Second, cfg.backoffFor(2, errors.New("boom")))
}
