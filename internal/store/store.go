// Package store keeps a loaded dataset in PostgreSQL and serves it back to
// the API as a legdata.Source.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/onnwee/legvotes/internal/legdata"
	"github.com/onnwee/legvotes/internal/tracing"
)

// ErrNotFound is returned by Votes for an author with no legislator row.
var ErrNotFound = legdata.ErrNotFound

//go:embed schema.sql
var schema string

// Repository reads and writes datasets. It implements legdata.Source.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ legdata.Source = (*Repository)(nil)

// New creates a Repository on an open database handle.
func New(db *sql.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	if _, err = r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveDataset replaces the stored dataset with ds in a single transaction.
// Readers see either the previous dataset or the new one.
func (r *Repository) SaveDataset(ctx context.Context, ds *legdata.Dataset) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", slog.String("error", err.Error()))
		}
	}()

	for _, table := range []string{"votes", "bills", "legislators"} {
		if err := deleteAll(ctx, tx, table); err != nil {
			return err
		}
	}

	err = copyRows(ctx, tx, "legislators",
		[]string{"author", "position", "house", "district", "party", "display_name"},
		len(ds.Legislators), func(i int) []any {
			l := ds.Legislators[i]
			return []any{l.Author, i, l.House, l.District, l.Party, l.DisplayName}
		})
	if err != nil {
		return err
	}

	err = copyRows(ctx, tx, "bills",
		[]string{"id", "position", "measure", "subject", "location", "status"},
		len(ds.Bills), func(i int) []any {
			b := ds.Bills[i]
			return []any{b.ID, i, b.Measure, b.Subject, b.Location, b.Status}
		})
	if err != nil {
		return err
	}

	rows := voteRows(ds.Votes)
	err = copyRows(ctx, tx, "votes",
		[]string{"author", "bill_id", "bill_position", "position", "motion_id", "voted_at", "vote", "motion", "result"},
		len(rows), func(i int) []any { return rows[i] })
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Info("dataset saved",
		slog.Int("legislators", len(ds.Legislators)),
		slog.Int("bills", len(ds.Bills)),
		slog.Int("votes", len(rows)))
	return nil
}

func voteRows(votes []legdata.AuthorVotes) [][]any {
	var rows [][]any
	for _, av := range votes {
		for bi, bv := range av.Bills {
			for vi, v := range bv.Votes {
				rows = append(rows, []any{
					av.Author, bv.BillID, bi, vi, v.MotionID, v.Timestamp, v.Vote, v.Motion, v.Result,
				})
			}
		}
	}
	return rows
}

func deleteAll(ctx context.Context, tx *sql.Tx, table string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+pq.QuoteIdentifier(table)); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

// copyRows bulk-loads n rows into table with COPY FROM STDIN.
func copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, row func(int) []any) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationCopy)
	defer func() { endSpan(err) }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("prepare copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err = stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("copy row %d into %s: %w", i, table, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy into %s: %w", table, err)
	}
	return nil
}

// Catalog implements legdata.Source. Legislators come back grouped by house
// in district order, bills in measure order, matching the JSON documents.
func (r *Repository) Catalog(ctx context.Context) (_ *legdata.Catalog, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "legislators", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	c := &legdata.Catalog{
		Legislators: []legdata.Legislator{},
		Bills:       []legdata.Bill{},
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT author, house, district, party, display_name
		FROM legislators
		ORDER BY house, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query legislators: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l legdata.Legislator
		if err = rows.Scan(&l.Author, &l.House, &l.District, &l.Party, &l.DisplayName); err != nil {
			return nil, fmt.Errorf("scan legislator: %w", err)
		}
		c.Legislators = append(c.Legislators, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legislators: %w", err)
	}

	billRows, err := r.db.QueryContext(ctx, `
		SELECT id, measure, subject, location, status
		FROM bills
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer billRows.Close()
	for billRows.Next() {
		var (
			b       legdata.Bill
			subject sql.NullString
		)
		if err = billRows.Scan(&b.ID, &b.Measure, &subject, &b.Location, &b.Status); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		if subject.Valid {
			b.Subject = &subject.String
		}
		c.Bills = append(c.Bills, b)
	}
	if err = billRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return c, nil
}

// Votes implements legdata.Source.
func (r *Repository) Votes(ctx context.Context, author string) (_ []legdata.BillVotes, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var known bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM legislators WHERE author = $1)`, author).Scan(&known)
	if err != nil {
		return nil, fmt.Errorf("look up %q: %w", author, err)
	}
	if !known {
		return nil, fmt.Errorf("votes for %q: %w", author, ErrNotFound)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT bill_id, motion_id, voted_at, vote, motion, result
		FROM votes
		WHERE author = $1
		ORDER BY bill_position, position
	`, author)
	if err != nil {
		return nil, fmt.Errorf("query votes for %q: %w", author, err)
	}
	defer rows.Close()

	bills := []legdata.BillVotes{}
	for rows.Next() {
		var (
			billID string
			v      legdata.Vote
		)
		if err = rows.Scan(&billID, &v.MotionID, &v.Timestamp, &v.Vote, &v.Motion, &v.Result); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if n := len(bills); n == 0 || bills[n-1].BillID != billID {
			bills = append(bills, legdata.BillVotes{BillID: billID})
		}
		last := &bills[len(bills)-1]
		last.Votes = append(last.Votes, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes for %q: %w", author, err)
	}
	return bills, nil
}
