// Package legdata downloads and parses the California legislature's public
// data files into the legislator, bill and vote documents served by the API.
//
// Column positions follow the table definitions shipped in
// https://downloads.leginfo.legislature.ca.gov/pubinfo_load.zip.
package legdata

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBaseURL is the base URL for downloading data files.
const DefaultBaseURL = "https://downloads.leginfo.legislature.ca.gov"

// DefaultArchive is the weekly full export.
const DefaultArchive = "pubinfo_daily_Sat.zip"

// DataFile names a data file of interest inside the archive.
type DataFile string

// Data files read by the loader.
const (
	FileLegislators   DataFile = "LEGISLATOR_TBL.dat"
	FileVotes         DataFile = "BILL_DETAIL_VOTE_TBL.dat"
	FileMotions       DataFile = "BILL_MOTION_TBL.dat"
	FileVoteSummaries DataFile = "BILL_SUMMARY_VOTE_TBL.dat"
	FileBills         DataFile = "BILL_TBL.dat"
	FileBillVersions  DataFile = "BILL_VERSION_TBL.dat"
)

// DataFiles lists every file the loader needs.
func DataFiles() []DataFile {
	return []DataFile{
		FileLegislators,
		FileVotes,
		FileMotions,
		FileVoteSummaries,
		FileBills,
		FileBillVersions,
	}
}

// Output file names.
const (
	LegislatorsFile = "legislators.json"
	BillsFile       = "bills.json"
	VotesDir        = "votes"
	LayoutFile      = "layout.json"
)

// Paths locates the download and output directories.
type Paths struct {
	DownloadDir string
	OutputDir   string
}

// LegislatorsPath returns the legislators document path.
func (p Paths) LegislatorsPath() string {
	return filepath.Join(p.OutputDir, LegislatorsFile)
}

// BillsPath returns the bills document path.
func (p Paths) BillsPath() string {
	return filepath.Join(p.OutputDir, BillsFile)
}

// VotesDir returns the directory holding one vote document per legislator.
func (p Paths) VotesDir() string {
	return filepath.Join(p.OutputDir, VotesDir)
}

// VotesPath returns the vote document path for author.
func (p Paths) VotesPath(author string) string {
	return filepath.Join(p.VotesDir(), author+".json")
}

// DataPath returns the downloaded path of f.
func (p Paths) DataPath(f DataFile) string {
	return filepath.Join(p.DownloadDir, string(f))
}

// CreateDirs creates the directories used to download and output data.
func (p Paths) CreateDirs() error {
	for _, dir := range []string{p.DownloadDir, p.OutputDir, p.VotesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
