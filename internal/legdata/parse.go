package legdata

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Parse errors.
var (
	ErrUnknownHouse   = errors.New("unknown house")
	ErrUnknownVersion = errors.New("bill references unknown version")
	ErrUnknownAuthor  = errors.New("vote references unknown legislator")
	ErrUnknownMotion  = errors.New("vote references unknown motion")
)

// voteTimeLayout is the timestamp format of the vote table.
const voteTimeLayout = "2006-01-02 15:04:05"

// ParseLegislators reads the legislator table and returns legislators in
// district order, one entry per author name.
func ParseLegislators(p Paths) ([]Legislator, error) {
	var all []Legislator
	err := readRows(p.DataPath(FileLegislators), FileLegislators, func(r *row) error {
		l := Legislator{
			District: r.str(0),
			House:    r.str(3),
			Author:   r.str(4),
			Party:    r.str(11),
		}
		l.DisplayName = displayName(r.str(2))
		if r.err != nil {
			return nil
		}
		if l.House != HouseAssembly && l.House != HouseSenate {
			return fmt.Errorf("%s line %d: %w %q", FileLegislators, r.line, ErrUnknownHouse, l.House)
		}
		all = append(all, l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A later row for the same author replaces the earlier one.
	latest := make(map[string]Legislator, len(all))
	for _, l := range all {
		latest[l.Author] = l
	}
	for i, l := range all {
		all[i] = latest[l.Author]
	}

	slices.SortStableFunc(all, func(a, b Legislator) int {
		return cmp.Compare(a.District, b.District)
	})

	seen := make(map[string]bool, len(latest))
	legislators := make([]Legislator, 0, len(latest))
	for _, l := range all {
		if seen[l.Author] {
			continue
		}
		seen[l.Author] = true
		legislators = append(legislators, l)
	}
	return legislators, nil
}

// displayName turns "Last, First" into "First Last". Extra comma separated
// parts stay after the last name, e.g. "Smith, Jr., John" becomes
// "John Smith, Jr.".
func displayName(name string) string {
	parts := strings.Split(name, ", ")
	first := parts[len(parts)-1]
	rest := parts[:len(parts)-1]
	return strings.TrimSpace(first + " " + strings.Join(rest, ", "))
}

// ParseBills reads the bill and bill version tables and returns bills
// ordered by measure type, session and number.
func ParseBills(p Paths) ([]Bill, error) {
	subjects := make(map[string]*string)
	err := readRows(p.DataPath(FileBillVersions), FileBillVersions, func(r *row) error {
		id := r.str(0)
		subject := r.field(6)
		if r.err == nil {
			subjects[id] = subject.Ptr()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var bills []Bill
	err = readRows(p.DataPath(FileBills), FileBills, func(r *row) error {
		b := Bill{
			ID:          r.str(0),
			session:     r.integer(2),
			measureType: r.str(3),
			number:      r.integer(4),
			// NULL location and status are written as "", not null.
			Location:    r.field(16).String(),
			Status:      r.field(17).String(),
		}
		versionID := r.str(10)
		if r.err != nil {
			return nil
		}
		subject, ok := subjects[versionID]
		if !ok {
			return fmt.Errorf("%s line %d: %w %q", FileBills, r.line, ErrUnknownVersion, versionID)
		}
		b.Subject = subject
		b.Measure = measureName(b.measureType, b.session, b.number)
		bills = append(bills, b)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Later rows for the same bill replace earlier ones.
	byID := make(map[string]Bill, len(bills))
	for _, b := range bills {
		byID[b.ID] = b
	}
	unique := make([]Bill, 0, len(byID))
	seen := make(map[string]bool, len(byID))
	for _, b := range bills {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		unique = append(unique, byID[b.ID])
	}

	slices.SortStableFunc(unique, func(a, b Bill) int {
		return cmp.Or(
			cmp.Compare(a.measureType, b.measureType),
			cmp.Compare(a.session, b.session),
			cmp.Compare(a.number, b.number),
		)
	})
	return unique, nil
}

// measureName formats a measure as e.g. "AB-12", or "SBX1-3" for bills of an
// extraordinary session.
func measureName(measureType string, session, number int) string {
	var b strings.Builder
	b.WriteString(measureType)
	if session > 0 {
		b.WriteString("X")
		b.WriteString(strconv.Itoa(session))
	}
	b.WriteString("-")
	b.WriteString(strconv.Itoa(number))
	return b.String()
}

// ParseVotes reads the vote, motion and vote summary tables and groups votes
// by legislator. Every author in authors gets an entry, in the given order,
// even when they cast no votes. Vote times are read in loc.
func ParseVotes(p Paths, authors []string, loc *time.Location) ([]AuthorVotes, error) {
	motions := make(map[string]string)
	err := readRows(p.DataPath(FileMotions), FileMotions, func(r *row) error {
		id := r.str(0)
		text := r.field(1)
		// A NULL motion text is written as "".
		if r.err == nil {
			motions[id] = text.String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make(map[string]string)
	err = readRows(p.DataPath(FileVoteSummaries), FileVoteSummaries, func(r *row) error {
		id := r.str(4)
		result := r.field(8)
		if r.err == nil {
			results[id] = strings.Trim(result.String(), "()")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	type authorBills struct {
		order []string
		votes map[string][]Vote
	}
	byAuthor := make(map[string]*authorBills, len(authors))
	for _, a := range authors {
		byAuthor[a] = &authorBills{votes: make(map[string][]Vote)}
	}

	err = readRows(p.DataPath(FileVotes), FileVotes, func(r *row) error {
		billID := r.str(0)
		author := r.str(2)
		rawTime := r.str(3)
		// A NULL vote is written as "", like NULL motions and results.
		vote := r.field(5).String()
		motionKey := r.str(6)
		motionID := r.integer(6)
		if r.err != nil {
			return nil
		}

		ab, ok := byAuthor[author]
		if !ok {
			return fmt.Errorf("%s line %d: %w %q", FileVotes, r.line, ErrUnknownAuthor, author)
		}
		motion, ok := motions[motionKey]
		if !ok {
			return fmt.Errorf("%s line %d: %w %q", FileVotes, r.line, ErrUnknownMotion, motionKey)
		}
		result, ok := results[motionKey]
		if !ok {
			return fmt.Errorf("%s line %d: %w %q has no vote summary", FileVotes, r.line, ErrUnknownMotion, motionKey)
		}
		ts, err := time.ParseInLocation(voteTimeLayout, rawTime, loc)
		if err != nil {
			return fmt.Errorf("%s line %d: parse time %q: %w", FileVotes, r.line, rawTime, err)
		}

		if _, ok := ab.votes[billID]; !ok {
			ab.order = append(ab.order, billID)
		}
		ab.votes[billID] = append(ab.votes[billID], Vote{
			Timestamp: ts.Unix(),
			MotionID:  motionID,
			Vote:      vote,
			Motion:    motion,
			Result:    result,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]AuthorVotes, 0, len(authors))
	done := make(map[string]bool, len(authors))
	for _, author := range authors {
		if done[author] {
			continue
		}
		done[author] = true

		ab := byAuthor[author]
		bills := make([]BillVotes, 0, len(ab.order))
		for _, billID := range ab.order {
			votes := ab.votes[billID]
			slices.SortStableFunc(votes, func(a, b Vote) int {
				return cmp.Compare(b.MotionID, a.MotionID)
			})
			bills = append(bills, BillVotes{BillID: billID, Votes: votes})
		}
		slices.SortStableFunc(bills, func(a, b BillVotes) int {
			return cmp.Compare(b.Votes[0].MotionID, a.Votes[0].MotionID)
		})
		out = append(out, AuthorVotes{Author: author, Bills: bills})
	}
	return out, nil
}

// Authors returns the author names of legislators, in order.
func Authors(legislators []Legislator) []string {
	authors := make([]string, len(legislators))
	for i, l := range legislators {
		authors[i] = l.Author
	}
	return authors
}
