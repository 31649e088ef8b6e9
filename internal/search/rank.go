package search

import (
	"cmp"
	"fmt"
	"slices"
)

// Option is a selectable item that carries a display label used for matching.
type Option interface {
	Label() string
}

// scored pairs an option with its match score while sorting.
type scored[T Option] struct {
	option T
	score  float64
}

// Rank matches query against the label of every option and returns the
// options that matched, best match first.
//
// Options the matcher rejects are dropped. Ties keep input order. The input
// slice is never modified and the result is never nil. If the matcher fails
// for any option, ranking stops and the error is returned.
func Rank[T Option](query string, options []T, m Matcher) ([]T, error) {
	results := make([]scored[T], 0, len(options))

	for i, option := range options {
		score, ok, err := m.Match(query, option.Label())
		if err != nil {
			return nil, fmt.Errorf("match option %d: %w", i, err)
		}
		if ok {
			results = append(results, scored[T]{option: option, score: score})
		}
	}

	slices.SortStableFunc(results, func(a, b scored[T]) int {
		return cmp.Compare(b.score, a.score)
	})

	ranked := make([]T, len(results))
	for i, r := range results {
		ranked[i] = r.option
	}
	return ranked, nil
}

// Limit truncates ranked to at most n options. n <= 0 means no limit.
func Limit[T any](ranked []T, n int) []T {
	if n <= 0 || len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}
