package match

import (
	"context"
	"strings"
)

// AttemptResult is what one search attempt observed
type AttemptResult struct {
	HasResults bool
	ExactMatch bool
}

// Found reports whether the attempt ends relaxation successfully
func (r AttemptResult) Found() bool {
	return r.HasResults || r.ExactMatch
}

// AttemptFunc runs one vendor search for query
type AttemptFunc func(ctx context.Context, query string) (AttemptResult, error)

// RelaxResult describes how relaxation ended
type RelaxResult struct {
	Query    string   // last query tried
	Queries  []string // every query tried, in order
	Found    bool
	Attempts int
}

// Queries returns the progressively relaxed queries for name: the full name,
// then one trailing word fewer each step. Duplicates are never produced.
func Queries(name string) []string {
	words := strings.Fields(name)
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for n := len(words); n > 0; n-- {
		q := strings.Join(words[:n], " ")
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// Relax tries attempt with each relaxed query until one finds results.
// An attempt error stops the loop and is returned with the progress so far.
func Relax(ctx context.Context, name string, attempt AttemptFunc) (RelaxResult, error) {
	var result RelaxResult
	for _, q := range Queries(name) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Query = q
		result.Queries = append(result.Queries, q)
		result.Attempts++

		r, err := attempt(ctx, q)
		if err != nil {
			return result, err
		}
		if r.Found() {
			result.Found = true
			return result, nil
		}
	}
	return result, nil
}
