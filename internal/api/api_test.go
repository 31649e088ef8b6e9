package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/page"
	"github.com/onnwee/legvotes/internal/search"
)

// fakeSource serves a fixed catalog and vote histories.
type fakeSource struct {
	catalog    *legdata.Catalog
	votes      map[string][]legdata.BillVotes
	catalogErr error
	votesErr   error
}

func (f *fakeSource) Catalog(context.Context) (*legdata.Catalog, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}

func (f *fakeSource) Votes(_ context.Context, author string) ([]legdata.BillVotes, error) {
	if f.votesErr != nil {
		return nil, f.votesErr
	}
	bills, ok := f.votes[author]
	if !ok {
		return nil, legdata.ErrNotFound
	}
	return bills, nil
}

func strPtr(s string) *string { return &s }

func newFakeSource() *fakeSource {
	return &fakeSource{
		catalog: &legdata.Catalog{
			Legislators: []legdata.Legislator{
				{Author: "Doe", House: "A", District: "AD01", Party: "DEM", DisplayName: "Jane Doe"},
				{Author: "Wood", House: "A", District: "AD03", Party: "DEM", DisplayName: "James Wood"},
				{Author: "Smith", House: "S", District: "SD05", Party: "REP", DisplayName: "John Smith, Jr."},
			},
			Bills: []legdata.Bill{
				{ID: "2025AB2", Measure: "AB-2"},
				{ID: "2025AB12", Measure: "AB-12", Subject: strPtr("Budget Act of 2025")},
				{ID: "2025SB3", Measure: "SBX1-3", Subject: strPtr("Energy")},
			},
		},
		votes: map[string][]legdata.BillVotes{
			"Doe": {},
			"Wood": {
				{BillID: "2025AB12", Votes: []legdata.Vote{
					{Timestamp: 1740936600, MotionID: 2, Vote: "NOE", Motion: "Third reading", Result: "FAIL"},
					{Timestamp: 1740850200, MotionID: 1, Vote: "AYE", Motion: "Do pass", Result: "PASS"},
				}},
			},
		},
	}
}

var fixedNow = time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires every handler around source with the fuzzy matcher.
func newTestRouter(source legdata.Source, cfg RouterConfig) RouterConfig {
	matcher, err := search.NewMatcher(search.MatcherFuzzy, true)
	if err != nil {
		panic(err)
	}
	searchHandlers := NewSearchHandlers(source, matcher, nil)
	cfg.Search = searchHandlers
	cfg.LiveSearch = NewLiveSearchHandlers(searchHandlers, nil)
	cfg.Layout = NewLayoutHandlers(page.NewLayoutProvider(func() time.Time { return fixedNow }, true))
	cfg.Votes = NewVotesHandlers(source)
	cfg.Health = NewHealthHandlers(HealthHandlersConfig{})
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return cfg
}
