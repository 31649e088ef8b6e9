package search

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilm "github.com/sahilm/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Matcher scores a single target label against a query.
// ok is false when the target does not match at all. Higher scores are better.
type Matcher interface {
	Match(query, target string) (score float64, ok bool, err error)
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(query, target string) (float64, bool, error)

// Match calls f(query, target).
func (f MatcherFunc) Match(query, target string) (float64, bool, error) {
	return f(query, target)
}

// Matcher names accepted by NewMatcher.
const (
	MatcherFuzzy    = "fuzzy"
	MatcherFzf      = "fzf"
	MatcherDistance = "distance"
)

// ErrUnknownMatcher is returned by NewMatcher for an unrecognised name.
var ErrUnknownMatcher = errors.New("unknown matcher")

// MatcherNames lists the names NewMatcher accepts.
func MatcherNames() []string {
	return []string{MatcherFuzzy, MatcherFzf, MatcherDistance}
}

// NewMatcher returns the matcher registered under name. An empty name selects
// the fuzzy matcher. When fold is set, diacritics are stripped from both the
// query and the target before matching.
func NewMatcher(name string, fold bool) (Matcher, error) {
	var m Matcher
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MatcherFuzzy:
		m = FuzzyMatcher{}
	case MatcherFzf:
		m = NewFzfMatcher()
	case MatcherDistance:
		m = DistanceMatcher{}
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMatcher, name, strings.Join(MatcherNames(), ", "))
	}
	if fold {
		m = Folded(m)
	}
	return m, nil
}

// FuzzyMatcher scores with github.com/sahilm/fuzzy, which rewards first
// character, word boundary, camel case and adjacent matches.
type FuzzyMatcher struct{}

// Match implements Matcher.
func (FuzzyMatcher) Match(query, target string) (float64, bool, error) {
	if strings.TrimSpace(query) == "" {
		return 0, false, nil
	}
	matches := sahilm.Find(query, []string{target})
	if len(matches) == 0 {
		return 0, false, nil
	}
	return float64(matches[0].Score), true, nil
}

var fzfInit sync.Once

// FzfMatcher scores with fzf's FuzzyMatchV2 algorithm, case-insensitively.
type FzfMatcher struct{}

// NewFzfMatcher initialises fzf's default scoring scheme and returns a matcher.
func NewFzfMatcher() FzfMatcher {
	fzfInit.Do(func() {
		algo.Init("default")
	})
	return FzfMatcher{}
}

// Match implements Matcher.
func (FzfMatcher) Match(query, target string) (float64, bool, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0, false, nil
	}
	chars := util.ToChars([]byte(target))
	// A nil slab makes the algorithm allocate, which keeps the matcher safe for
	// concurrent use.
	res, _ := algo.FuzzyMatchV2(false, true, true, &chars, []rune(query), false, nil)
	if res.Start < 0 {
		return 0, false, nil
	}
	return float64(res.Score), true, nil
}

// DistanceMatcher accepts targets containing the query as a case-insensitive
// subsequence and ranks them by Levenshtein distance, closest first.
type DistanceMatcher struct{}

// Match implements Matcher.
func (DistanceMatcher) Match(query, target string) (float64, bool, error) {
	if strings.TrimSpace(query) == "" {
		return 0, false, nil
	}
	distance := fuzzy.RankMatchNormalizedFold(query, target)
	if distance < 0 {
		return 0, false, nil
	}
	return -float64(distance), true, nil
}

// Folded wraps m so that query and target are compared without diacritics,
// e.g. "pena" matches "Peña".
func Folded(m Matcher) Matcher {
	return MatcherFunc(func(query, target string) (float64, bool, error) {
		q, err := foldDiacritics(query)
		if err != nil {
			return 0, false, fmt.Errorf("fold query: %w", err)
		}
		t, err := foldDiacritics(target)
		if err != nil {
			return 0, false, fmt.Errorf("fold target: %w", err)
		}
		return m.Match(q, t)
	})
}

// foldDiacritics decomposes s, drops combining marks and recomposes it.
func foldDiacritics(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	return out, err
}
