// Package search ranks selectable options against free-text user input.
//
// Basic Usage:
//
//	// Pick a matcher once (typically at startup)
//	matcher, err := search.NewMatcher(cfg.SearchMatcher, cfg.SearchFoldDiacritics)
//	if err != nil {
//		return err
//	}
//
//	// Rank on every input event
//	ranked, err := search.Rank(query, catalog.Legislators, matcher)
//
// Matchers:
//
// Scoring is delegated to third-party fuzzy matching libraries behind the
// narrow Matcher interface. Scores are only ever compared with each other,
// so matchers with different numeric scales can be swapped freely.
//
// Ordering:
//
// Rank uses a stable sort, so options with equal scores keep the order in
// which the caller supplied them.
package search
