package legdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// legislatorRecord is a legislator as stored in legislators.json, keyed by
// house and author name.
type legislatorRecord struct {
	District    string `json:"district"`
	Party       string `json:"party"`
	DisplayName string `json:"displayName"`
}

// billRecord is a bill as stored in bills.json, keyed by bill ID.
type billRecord struct {
	Measure  string  `json:"measure"`
	Subject  *string `json:"subject"`
	Location string  `json:"location"`
	Status   string  `json:"status"`
}

// houseOrder fixes the top-level key order of legislators.json.
var houseOrder = []string{HouseAssembly, HouseSenate}

func legislatorsDocument(legislators []Legislator) object[object[legislatorRecord]] {
	byHouse := make(map[string]object[legislatorRecord], len(houseOrder))
	for _, l := range legislators {
		byHouse[l.House] = append(byHouse[l.House], member[legislatorRecord]{
			Key: l.Author,
			Value: legislatorRecord{
				District:    l.District,
				Party:       l.Party,
				DisplayName: l.DisplayName,
			},
		})
	}

	doc := make(object[object[legislatorRecord]], 0, len(houseOrder))
	for _, house := range houseOrder {
		members := byHouse[house]
		if members == nil {
			members = object[legislatorRecord]{}
		}
		doc = append(doc, member[object[legislatorRecord]]{Key: house, Value: members})
	}
	return doc
}

func billsDocument(bills []Bill) object[billRecord] {
	doc := make(object[billRecord], 0, len(bills))
	for _, b := range bills {
		doc = append(doc, member[billRecord]{
			Key: b.ID,
			Value: billRecord{
				Measure:  b.Measure,
				Subject:  b.Subject,
				Location: b.Location,
				Status:   b.Status,
			},
		})
	}
	return doc
}

func votesDocument(bills []BillVotes) object[[]Vote] {
	doc := make(object[[]Vote], 0, len(bills))
	for _, b := range bills {
		doc = append(doc, member[[]Vote]{Key: b.BillID, Value: b.Votes})
	}
	return doc
}

// MarshalVotes encodes one legislator's votes the way votes files store
// them: an object keyed by bill ID, in the order given.
func MarshalVotes(bills []BillVotes) ([]byte, error) {
	return json.Marshal(votesDocument(bills))
}

// WriteDataset writes legislators.json, bills.json and one votes file per
// legislator into the output directory.
func WriteDataset(p Paths, ds *Dataset) error {
	if err := p.CreateDirs(); err != nil {
		return err
	}
	if err := writeJSON(p.LegislatorsPath(), legislatorsDocument(ds.Legislators)); err != nil {
		return err
	}
	if err := writeJSON(p.BillsPath(), billsDocument(ds.Bills)); err != nil {
		return err
	}
	for _, av := range ds.Votes {
		if err := ValidateAuthor(av.Author); err != nil {
			return err
		}
		if err := writeJSON(p.VotesPath(av.Author), votesDocument(av.Bills)); err != nil {
			return err
		}
	}
	return nil
}

// writeJSON writes v to path through a temporary file so readers never see a
// partial document.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
