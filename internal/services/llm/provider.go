package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

const jsonInstruction = "Respond with a single JSON object and nothing else."

type completer func(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error)

// ProviderFactory routes completions to Claude or Gemini based on the model
// string and implements interfaces.TextCompletionService.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger
	retry        *RetryConfig

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient *anthropic.Client

	completers map[ProviderType]completer
	limiters   map[ProviderType]*rate.Limiter
	timeouts   map[ProviderType]time.Duration
}

// NewProviderFactory creates a new provider factory. Clients are created on first use.
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	f := &ProviderFactory{
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		llmConfig:    llmConfig,
		logger:       logger,
		retry:        NewDefaultRetryConfig(),
		limiters:     make(map[ProviderType]*rate.Limiter),
		timeouts: map[ProviderType]time.Duration{
			ProviderClaude: common.ParseDurationOr(claudeConfig.Timeout, 60*time.Second),
			ProviderGemini: common.ParseDurationOr(geminiConfig.Timeout, 60*time.Second),
		},
	}
	f.completers = map[ProviderType]completer{
		ProviderClaude: f.generateWithClaude,
		ProviderGemini: f.generateWithGemini,
	}

	if gap := common.ParseDurationOr(claudeConfig.RateLimit, 0); gap > 0 {
		f.limiters[ProviderClaude] = rate.NewLimiter(rate.Every(gap), 1)
	}
	if gap := common.ParseDurationOr(geminiConfig.RateLimit, 0); gap > 0 {
		f.limiters[ProviderGemini] = rate.NewLimiter(rate.Every(gap), 1)
	}
	return f
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-haiku-4-5" -> Claude
// - "claude/claude-haiku-4-5" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - "gemini/gemini-2.5-flash" -> Gemini (with prefix)
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(f.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	return ProviderType(f.llmConfig.DefaultProvider)
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the default model for a provider
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	switch provider {
	case ProviderClaude:
		return f.claudeConfig.Model
	default:
		return f.geminiConfig.Model
	}
}

// Complete runs one completion with rate limiting, a per-call timeout and retries
func (f *ProviderFactory) Complete(ctx context.Context, request *interfaces.CompletionRequest) (string, error) {
	provider := f.DetectProvider(request.Model)
	model := f.NormalizeModel(request.Model)
	if model == "" {
		model = f.GetDefaultModel(provider)
	}

	call, ok := f.completers[provider]
	if !ok {
		return "", fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Bool("json", request.JSON).
		Msg("Generating completion")

	var text string
	start := time.Now()
	attempts, err := withRetry(ctx, f.retry, f.logger, string(provider), func(ctx context.Context) error {
		if limiter := f.limiters[provider]; limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, f.timeouts[provider])
		defer cancel()

		out, err := call(callCtx, request, model)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s completion failed after %d attempts: %w", provider, attempts+1, err)
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("retries", attempts).
		Dur("duration", time.Since(start)).
		Msg("Completion finished")
	return text, nil
}

// GetClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) GetClaudeClient() (*anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeClient != nil {
		return f.claudeClient, nil
	}
	if f.claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("no Anthropic API key configured")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(f.claudeConfig.APIKey),
	)
	f.claudeClient = &client
	return f.claudeClient, nil
}

// GetGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}
	if f.geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("no Gemini API key configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error) {
	client, err := f.GetClaudeClient()
	if err != nil {
		return "", err
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.UserPrompt)),
		},
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.claudeConfig.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	systemText := request.SystemPrompt
	if request.JSON {
		systemText = strings.TrimSpace(systemText + "\n\n" + jsonInstruction)
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}

func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *interfaces.CompletionRequest, model string) (string, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return "", err
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.geminiConfig.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if request.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemPrompt, genai.RoleUser)
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if request.JSON {
		// Gemini enforces the MIME type, so no prompt instruction is needed
		config.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(request.UserPrompt), config)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}
	return responseText, nil
}

// Close releases provider clients
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geminiClient = nil
	f.claudeClient = nil
	return nil
}
