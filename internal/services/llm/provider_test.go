package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

func newTestFactory() *ProviderFactory {
	cfg := common.NewDefaultConfig()
	cfg.Claude.RateLimit = ""
	cfg.Gemini.RateLimit = ""
	f := NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, arbor.NewLogger())
	f.retry.ErrorBackoff = time.Millisecond
	f.retry.InitialBackoff = time.Millisecond
	f.retry.MaxBackoff = 5 * time.Millisecond
	return f
}

func TestDetectProvider(t *testing.T) {
	f := newTestFactory()

	tests := []struct {
		model string
		want  ProviderType
	}{
		{"", ProviderClaude},
		{"claude-haiku-4-5", ProviderClaude},
		{"anthropic/claude-x", ProviderClaude},
		{"gemini-2.5-flash", ProviderGemini},
		{"google/gemini-2.5-pro", ProviderGemini},
		{"Gemini/Gemini-2.5-pro", ProviderGemini},
		{"something-else-entirely", ProviderClaude},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.DetectProvider(tt.model), tt.model)
	}
}

func TestNormalizeModel(t *testing.T) {
	f := newTestFactory()
	assert.Equal(t, "claude-haiku-4-5", f.NormalizeModel("claude/claude-haiku-4-5"))
	assert.Equal(t, "gemini-2.5-flash", f.NormalizeModel("google/gemini-2.5-flash"))
	assert.Equal(t, "gemini-2.5-flash", f.NormalizeModel("gemini-2.5-flash"))
}

func TestCompleteRoutesToProviderWithDefaultModel(t *testing.T) {
	f := newTestFactory()

	var gotModel string
	var gotRequest *interfaces.CompletionRequest
	f.completers[ProviderGemini] = func(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error) {
		gotModel = model
		gotRequest = request
		return `{"id":1}`, nil
	}

	out, err := f.Complete(context.Background(), &interfaces.CompletionRequest{Model: "gemini/", UserPrompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, out)
	assert.Equal(t, "gemini-2.5-flash", gotModel)
	assert.True(t, gotRequest.JSON)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	f := newTestFactory()

	calls := 0
	f.completers[ProviderClaude] = func(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("Error 429 RESOURCE_EXHAUSTED")
		}
		return "ok", nil
	}

	out, err := f.Complete(context.Background(), &interfaces.CompletionRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	f := newTestFactory()
	f.retry.MaxRetries = 2

	calls := 0
	f.completers[ProviderClaude] = func(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error) {
		calls++
		return "", errors.New("boom")
	}

	_, err := f.Complete(context.Background(), &interfaces.CompletionRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestCompleteStopsOnCancelledContext(t *testing.T) {
	f := newTestFactory()
	f.retry.ErrorBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	f.completers[ProviderClaude] = func(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error) {
		cancel()
		return "", errors.New("boom")
	}

	_, err := f.Complete(ctx, &interfaces.CompletionRequest{UserPrompt: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMissingAPIKey(t *testing.T) {
	f := newTestFactory()
	f.claudeConfig.APIKey = ""
	f.geminiConfig.APIKey = ""

	_, err := f.GetClaudeClient()
	assert.Error(t, err)
	_, err = f.GetGeminiClient(context.Background())
	assert.Error(t, err)
}
