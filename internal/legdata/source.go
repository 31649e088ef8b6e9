package legdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
)

// Source errors.
var (
	ErrInvalidAuthor = errors.New("invalid author name")
	ErrNotFound      = errors.New("not found")
)

// authorPattern rejects path separators, NUL bytes and a leading dot so an
// author name is always a single plain file name.
var authorPattern = regexp.MustCompile(`^[^/\\\x00.][^/\\\x00]*$`)

// ValidateAuthor rejects names that cannot be used as a votes file name.
func ValidateAuthor(author string) error {
	if len(author) > 128 || !authorPattern.MatchString(author) {
		return fmt.Errorf("%w: %q", ErrInvalidAuthor, author)
	}
	return nil
}

// DirSource serves the documents written by WriteDataset. The catalog is read
// once and kept until Reload is called.
type DirSource struct {
	paths Paths

	mu      sync.Mutex
	catalog *Catalog
}

// NewDirSource creates a DirSource reading from p.OutputDir.
func NewDirSource(p Paths) *DirSource {
	return &DirSource{paths: p}
}

// Catalog implements Source.
func (s *DirSource) Catalog(_ context.Context) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil {
		return s.catalog, nil
	}

	c, err := ReadCatalog(s.paths)
	if err != nil {
		return nil, err
	}
	s.catalog = c
	return c, nil
}

// Reload drops the cached catalog so the next call re-reads it.
func (s *DirSource) Reload() {
	s.mu.Lock()
	s.catalog = nil
	s.mu.Unlock()
}

// Votes implements Source.
func (s *DirSource) Votes(_ context.Context, author string) ([]BillVotes, error) {
	if err := ValidateAuthor(author); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.paths.VotesPath(author))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("votes for %q: %w", author, ErrNotFound)
		}
		return nil, fmt.Errorf("read votes for %q: %w", author, err)
	}

	var doc object[[]Vote]
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode votes for %q: %w", author, err)
	}

	bills := make([]BillVotes, len(doc))
	for i, m := range doc {
		bills[i] = BillVotes{BillID: m.Key, Votes: m.Value}
	}
	return bills, nil
}

// ReadCatalog reads legislators.json and bills.json, keeping document order.
func ReadCatalog(p Paths) (*Catalog, error) {
	var legislatorsDoc object[object[legislatorRecord]]
	if err := readJSON(p.LegislatorsPath(), &legislatorsDoc); err != nil {
		return nil, err
	}
	var billsDoc object[billRecord]
	if err := readJSON(p.BillsPath(), &billsDoc); err != nil {
		return nil, err
	}

	c := &Catalog{
		Legislators: []Legislator{},
		Bills:       make([]Bill, 0, len(billsDoc)),
	}
	for _, house := range legislatorsDoc {
		for _, m := range house.Value {
			c.Legislators = append(c.Legislators, Legislator{
				Author:      m.Key,
				House:       house.Key,
				District:    m.Value.District,
				Party:       m.Value.Party,
				DisplayName: m.Value.DisplayName,
			})
		}
	}
	for _, m := range billsDoc {
		c.Bills = append(c.Bills, Bill{
			ID:       m.Key,
			Measure:  m.Value.Measure,
			Subject:  m.Value.Subject,
			Location: m.Value.Location,
			Status:   m.Value.Status,
		})
	}
	return c, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
