//go:build integration

// Integration tests in this package need PostgreSQL. They use DATABASE_URL
// when set, otherwise they start a container with testcontainers.
//
//	go test -tags=integration -v ./internal/store/...
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/onnwee/legvotes/internal/legdata"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)

		ctr, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("legvotes"),
			postgres.WithUsername("legvotes"),
			postgres.WithPassword("legvotes"),
			postgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, ctr)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}
		dbURL, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get connection string: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db, err := Open(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo := New(setupTestDB(t), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return repo
}

func strPtr(s string) *string { return &s }

func testDataset() *legdata.Dataset {
	return &legdata.Dataset{
		Legislators: []legdata.Legislator{
			{Author: "Doe", House: "A", District: "AD01", Party: "DEM", DisplayName: "Jane Doe"},
			{Author: "Wood", House: "A", District: "AD03", Party: "DEM", DisplayName: "James Wood"},
			{Author: "Smith", House: "S", District: "SD05", Party: "REP", DisplayName: "John Smith, Jr."},
		},
		Bills: []legdata.Bill{
			{ID: "2025AB2", Measure: "AB-2", Location: "CX08", Status: "Introduced"},
			{ID: "2025AB12", Measure: "AB-12", Subject: strPtr("Budget Act of 2025"), Location: "Desk", Status: "Chaptered"},
			{ID: "2025SB3", Measure: "SBX1-3", Subject: strPtr("Energy"), Location: "", Status: ""},
		},
		Votes: []legdata.AuthorVotes{
			{Author: "Doe"},
			{Author: "Wood", Bills: []legdata.BillVotes{
				{BillID: "2025AB12", Votes: []legdata.Vote{
					{Timestamp: 1740936600, MotionID: 2, Vote: "NOE", Motion: "Third reading", Result: "FAIL"},
					{Timestamp: 1740850200, MotionID: 1, Vote: "AYE", Motion: "Do pass", Result: "PASS"},
				}},
				{BillID: "2025AB2", Votes: []legdata.Vote{
					{Timestamp: 1740763800, MotionID: 1, Vote: "AYE", Motion: "Do pass", Result: "PASS"},
				}},
			}},
			{Author: "Smith", Bills: []legdata.BillVotes{
				{BillID: "2025SB3", Votes: []legdata.Vote{
					{Timestamp: 1740763800, MotionID: 1, Vote: "", Motion: "Do pass", Result: "PASS"},
				}},
			}},
		},
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	ds := testDataset()

	if err := repo.SaveDataset(ctx, ds); err != nil {
		t.Fatalf("SaveDataset() error = %v", err)
	}

	catalog, err := repo.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if !reflect.DeepEqual(catalog.Legislators, ds.Legislators) {
		t.Errorf("legislators = %+v, want %+v", catalog.Legislators, ds.Legislators)
	}
	if len(catalog.Bills) != len(ds.Bills) {
		t.Fatalf("got %d bills, want %d", len(catalog.Bills), len(ds.Bills))
	}
	for i, b := range catalog.Bills {
		want := ds.Bills[i]
		if b.ID != want.ID || b.Measure != want.Measure || b.Label() != want.Label() {
			t.Errorf("bill %d = %+v, want %+v", i, b, want)
		}
	}
	if catalog.Bills[0].Subject != nil {
		t.Errorf("expected NULL subject for %s", catalog.Bills[0].ID)
	}

	for _, av := range ds.Votes {
		got, err := repo.Votes(ctx, av.Author)
		if err != nil {
			t.Fatalf("Votes(%q) error = %v", av.Author, err)
		}
		want := av.Bills
		if want == nil {
			want = []legdata.BillVotes{}
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Votes(%q) = %+v, want %+v", av.Author, got, want)
		}
	}
}

func TestRepository_SaveDatasetReplaces(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.SaveDataset(ctx, testDataset()); err != nil {
		t.Fatalf("first SaveDataset() error = %v", err)
	}

	smaller := &legdata.Dataset{
		Legislators: []legdata.Legislator{
			{Author: "Lee", House: "S", District: "SD10", Party: "DEM", DisplayName: "Ann Lee"},
		},
		Votes: []legdata.AuthorVotes{{Author: "Lee"}},
	}
	if err := repo.SaveDataset(ctx, smaller); err != nil {
		t.Fatalf("second SaveDataset() error = %v", err)
	}

	catalog, err := repo.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if len(catalog.Legislators) != 1 || catalog.Legislators[0].Author != "Lee" {
		t.Errorf("legislators = %+v", catalog.Legislators)
	}
	if len(catalog.Bills) != 0 {
		t.Errorf("bills = %+v, want none", catalog.Bills)
	}
	if _, err := repo.Votes(ctx, "Wood"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Votes(Wood) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_VotesUnknownAuthor(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.SaveDataset(ctx, testDataset()); err != nil {
		t.Fatalf("SaveDataset() error = %v", err)
	}
	_, err := repo.Votes(ctx, "Nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, legdata.ErrNotFound) {
		t.Fatal("expected store and legdata not-found errors to match")
	}
}
