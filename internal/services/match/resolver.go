package match

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/metrics"
	"github.com/ternarybob/rateprobe/internal/models"
)

const systemPromptTemplate = `I need you to search a list of hotels and their ID number, and tell which ID number matches exactly or most closely to a hotel I am looking for [QUERY].
[LIST]
%s
[OUTPUT] return the best option or NULL if you dont believe the hotel is in the list, using JSON that matches the type {id: int | null, name: string | null} where null would be if no close match exists.`

type choice struct {
	ID   *int    `json:"id"`
	Name *string `json:"name"`
}

// Resolver picks the candidate that denotes the target hotel. A verbatim name
// match short-circuits; anything else is arbitrated by the completion service.
// Arbitration failures resolve to no match and are never returned as errors.
type Resolver struct {
	llm         interfaces.TextCompletionService
	model       string
	temperature float32
	metrics     *metrics.Metrics
	logger      arbor.ILogger
}

// NewResolver creates a resolver. llm may be nil, in which case only exact matches resolve.
func NewResolver(llm interfaces.TextCompletionService, model string, temperature float32, m *metrics.Metrics, logger arbor.ILogger) *Resolver {
	return &Resolver{
		llm:         llm,
		model:       model,
		temperature: temperature,
		metrics:     m,
		logger:      logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, candidates []models.Candidate, targetName, targetAddress string) *models.Candidate {
	if len(candidates) == 0 {
		r.metrics.ObserveMatch(metrics.MatchNone)
		return nil
	}

	for i := range candidates {
		if candidates[i].Name == targetName {
			r.metrics.ObserveMatch(metrics.MatchExact)
			c := candidates[i]
			return &c
		}
	}

	if r.llm == nil {
		r.metrics.ObserveMatch(metrics.MatchNone)
		return nil
	}

	raw, err := r.llm.Complete(ctx, &interfaces.CompletionRequest{
		SystemPrompt: BuildSystemPrompt(candidates),
		UserPrompt:   BuildUserPrompt(targetName, targetAddress),
		Model:        r.model,
		Temperature:  r.temperature,
		JSON:         true,
	})
	if err != nil {
		r.failure(fmt.Errorf("%w: %v", interfaces.ErrMatchService, err), targetName)
		return nil
	}

	idx, err := parseChoice(raw)
	if err != nil {
		r.failure(fmt.Errorf("%w: %v", interfaces.ErrMatchService, err), targetName)
		return nil
	}
	if idx == nil {
		r.metrics.ObserveMatch(metrics.MatchNone)
		r.logger.Debug().Str("target", targetName).Int("candidates", len(candidates)).Msg("No close match among candidates")
		return nil
	}
	if *idx < 0 || *idx >= len(candidates) {
		r.failure(fmt.Errorf("%w: index %d out of range (%d candidates)", interfaces.ErrMatchService, *idx, len(candidates)), targetName)
		return nil
	}

	r.metrics.ObserveMatch(metrics.MatchLLM)
	c := candidates[*idx]
	r.logger.Debug().Str("target", targetName).Str("match", c.Name).Int("index", *idx).Msg("Candidate resolved by arbitration")
	return &c
}

// ResolveName resolves over bare names. Returns "" when nothing matches.
func (r *Resolver) ResolveName(ctx context.Context, names []string, targetName string) string {
	candidates := make([]models.Candidate, len(names))
	for i, name := range names {
		candidates[i] = models.Candidate{Name: name}
	}
	if c := r.Resolve(ctx, candidates, targetName, ""); c != nil {
		return c.Name
	}
	return ""
}

func (r *Resolver) failure(err error, target string) {
	r.metrics.ObserveMatch(metrics.MatchFailure)
	r.logger.Warn().Err(err).Str("target", target).Msg("Match arbitration failed, treating as no match")
}

// BuildSystemPrompt renders the indexed candidate list
func BuildSystemPrompt(candidates []models.Candidate) string {
	lines := make([]string, len(candidates))
	for i, c := range candidates {
		lines[i] = fmt.Sprintf("id: %d  name:%s   address:%s", i, c.Name, c.Address)
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(lines, "\n"))
}

func BuildUserPrompt(name, address string) string {
	return fmt.Sprintf("[QUERY] name: %s  address: %s", name, address)
}

// parseChoice extracts the outermost JSON object from raw, tolerating code fences
func parseChoice(raw string) (*int, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var c choice
	if err := json.Unmarshal([]byte(raw[start:end+1]), &c); err != nil {
		return nil, fmt.Errorf("malformed JSON response: %w", err)
	}
	return c.ID, nil
}
