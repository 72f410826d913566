package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueriesDropTrailingWords(t *testing.T) {
	assert.Equal(t, []string{"Grand Hotel Central Plaza", "Grand Hotel Central", "Grand Hotel", "Grand"}, Queries("  Grand Hotel   Central Plaza "))
	assert.Empty(t, Queries("   "))
}

func TestRelaxStopsAtFirstResults(t *testing.T) {
	var tried []string
	result, err := Relax(context.Background(), "Grand Hotel Central Plaza", func(ctx context.Context, q string) (AttemptResult, error) {
		tried = append(tried, q)
		return AttemptResult{HasResults: q == "Grand Hotel"}, nil
	})

	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "Grand Hotel", result.Query)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []string{"Grand Hotel Central Plaza", "Grand Hotel Central", "Grand Hotel"}, tried)
}

func TestRelaxExactMatchEndsImmediately(t *testing.T) {
	result, err := Relax(context.Background(), "Hotel Alpha", func(ctx context.Context, q string) (AttemptResult, error) {
		return AttemptResult{ExactMatch: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 1, result.Attempts)
}

func TestRelaxExhaustsWithoutRepeats(t *testing.T) {
	seen := map[string]int{}
	result, err := Relax(context.Background(), "Casa Casa Casa", func(ctx context.Context, q string) (AttemptResult, error) {
		seen[q]++
		return AttemptResult{}, nil
	})

	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, "Casa", result.Query)
	assert.LessOrEqual(t, result.Attempts, 3)
	for q, n := range seen {
		assert.Equal(t, 1, n, q)
	}
}

func TestRelaxAttemptErrorAborts(t *testing.T) {
	boom := errors.New("page crashed")
	calls := 0
	result, err := Relax(context.Background(), "One Two Three", func(ctx context.Context, q string) (AttemptResult, error) {
		calls++
		return AttemptResult{}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result.Attempts)
}

func TestRelaxHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Relax(ctx, "One Two", func(ctx context.Context, q string) (AttemptResult, error) {
		t.Fatal("attempt must not run")
		return AttemptResult{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
