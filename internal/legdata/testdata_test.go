package legdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// dataLine builds a tab separated line with n columns. Columns not in vals
// hold a placeholder value.
func dataLine(n int, vals map[int]string) string {
	cols := make([]string, n)
	for i := range cols {
		if v, ok := vals[i]; ok {
			cols[i] = v
		} else {
			cols[i] = "`x`"
		}
	}
	return strings.Join(cols, "\t")
}

func writeDataFile(t *testing.T, dir string, f DataFile, lines ...string) {
	t.Helper()
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, string(f)), []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", f, err)
	}
}

func legislatorLine(district, name, house, author, party string) string {
	return dataLine(12, map[int]string{0: district, 2: name, 3: house, 4: author, 11: party})
}

func billLine(id, session, typ, number, version, location, status string) string {
	return dataLine(18, map[int]string{0: id, 2: session, 3: typ, 4: number, 10: version, 16: location, 17: status})
}

func voteLine(bill, author, ts, vote, motion string) string {
	return dataLine(7, map[int]string{0: bill, 2: author, 3: ts, 5: vote, 6: motion})
}

// writeFixture writes a small but complete set of data files.
func writeFixture(t *testing.T) Paths {
	t.Helper()
	p := Paths{DownloadDir: t.TempDir(), OutputDir: t.TempDir()}

	writeDataFile(t, p.DownloadDir, FileLegislators,
		legislatorLine("`AD02`", "`Wood, Jim`", "`A`", "`Wood`", "`DEM`"),
		legislatorLine("`SD05`", "`Smith, Jr., John`", "`S`", "`Smith`", "`REP`"),
		legislatorLine("`AD01`", "`Doe, Jane`", "`A`", "`Doe`", "`DEM`"),
		legislatorLine("`AD03`", "`Wood, James`", "`A`", "`Wood`", "`DEM`"),
	)
	writeDataFile(t, p.DownloadDir, FileBillVersions,
		dataLine(7, map[int]string{0: "`v1`", 6: "`Budget Act of 2025`"}),
		dataLine(7, map[int]string{0: "`v2`", 6: "NULL"}),
	)
	writeDataFile(t, p.DownloadDir, FileBills,
		billLine("`2025AB12`", "`0`", "`AB`", "`12`", "`v1`", "`CHAPTERED`", "`Chaptered`"),
		billLine("`2025SB3`", "`1`", "`SB`", "`3`", "`v2`", "`SEN`", "`Introduced`"),
		billLine("`2025AB2`", "`0`", "`AB`", "`2`", "`v2`", "`ASM`", "NULL"),
	)
	writeDataFile(t, p.DownloadDir, FileMotions,
		dataLine(2, map[int]string{0: "`1`", 1: "`Do pass`"}),
		dataLine(2, map[int]string{0: "`2`", 1: "`Third reading`"}),
	)
	writeDataFile(t, p.DownloadDir, FileVoteSummaries,
		dataLine(9, map[int]string{4: "`1`", 8: "`(PASS)`"}),
		dataLine(9, map[int]string{4: "`2`", 8: "`(FAIL)`"}),
	)
	writeDataFile(t, p.DownloadDir, FileVotes,
		voteLine("`2025AB2`", "`Wood`", "`2025-03-01 10:00:00`", "`AYE`", "`1`"),
		voteLine("`2025AB12`", "`Wood`", "`2025-03-01 11:00:00`", "`AYE`", "`1`"),
		voteLine("`2025AB12`", "`Wood`", "`2025-03-02 09:30:00`", "`NOE`", "`2`"),
		voteLine("`2025SB3`", "`Smith`", "`2025-03-01 10:00:00`", "NULL", "`1`"),
	)
	return p
}

// parseFixture parses every table of the fixture at p.
func parseFixture(t *testing.T, p Paths) *Dataset {
	t.Helper()
	legislators, err := ParseLegislators(p)
	if err != nil {
		t.Fatalf("ParseLegislators() error = %v", err)
	}
	bills, err := ParseBills(p)
	if err != nil {
		t.Fatalf("ParseBills() error = %v", err)
	}
	votes, err := ParseVotes(p, Authors(legislators), pacific)
	if err != nil {
		t.Fatalf("ParseVotes() error = %v", err)
	}
	return &Dataset{Legislators: legislators, Bills: bills, Votes: votes}
}
