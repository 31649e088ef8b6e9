package legdata

import "context"

// Houses of the legislature.
const (
	HouseAssembly = "A"
	HouseSenate   = "S"
)

// Legislator is a member of either house.
type Legislator struct {
	Author      string `json:"author"`
	House       string `json:"house"`
	District    string `json:"district"`
	Party       string `json:"party"`
	DisplayName string `json:"displayName"`
}

// Label implements search.Option.
func (l Legislator) Label() string {
	return l.DisplayName
}

// Bill is a measure introduced in the current session.
type Bill struct {
	ID       string  `json:"id"`
	Measure  string  `json:"measure"`
	Subject  *string `json:"subject"`
	Location string  `json:"location"`
	Status   string  `json:"status"`

	measureType string
	session     int
	number      int
}

// Label implements search.Option.
func (b Bill) Label() string {
	if b.Subject == nil || *b.Subject == "" {
		return b.Measure
	}
	return b.Measure + " " + *b.Subject
}

// Vote is one legislator's vote on one motion.
type Vote struct {
	Timestamp int64  `json:"timestamp"`
	MotionID  int    `json:"-"`
	Vote      string `json:"vote"`
	Motion    string `json:"motion"`
	Result    string `json:"result"`
}

// BillVotes holds a legislator's votes on one bill, newest motion first.
type BillVotes struct {
	BillID string
	Votes  []Vote
}

// AuthorVotes holds a legislator's votes, most recently voted bill first.
type AuthorVotes struct {
	Author string
	Bills  []BillVotes
}

// Dataset is everything one loader run produces.
type Dataset struct {
	Legislators []Legislator
	Bills       []Bill
	Votes       []AuthorVotes
}

// VoteCount returns the total number of votes in the dataset.
func (d *Dataset) VoteCount() int {
	n := 0
	for _, av := range d.Votes {
		for _, bv := range av.Bills {
			n += len(bv.Votes)
		}
	}
	return n
}

// Catalog is the searchable part of a dataset.
type Catalog struct {
	Legislators []Legislator
	Bills       []Bill
}

// Source provides catalog and vote data to the API.
type Source interface {
	Catalog(ctx context.Context) (*Catalog, error)
	Votes(ctx context.Context, author string) ([]BillVotes, error)
}
