// Package sqlite stores the retinal tables in a local SQLite file using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vvka-141/rgpipe/internal/store"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"

	// Fixed width so that text ordering is time ordering.
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
)

var (
	//go:embed sql/flat.sql
	flatDDL string

	//go:embed sql/grouped.sql
	groupedDDL string

	//go:embed sql/journal.sql
	journalDDL string
)

// Target appends rows to one SQLite database file. Each table batch is
// inserted inside its own transaction.
type Target struct {
	db     *sql.DB
	path   string
	logger rgpipe.Logger
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string, logger rgpipe.Logger) (*Target, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, rgpipe.ErrConnectionFailed)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, rgpipe.ErrConnectionFailed)
	}
	logger.Verbose("Opened SQLite database %s", path)
	return &Target{db: db, path: path, logger: logger}, nil
}

func (t *Target) Name() string { return t.path }

// DB exposes the connection to tests.
func (t *Target) DB() *sql.DB { return t.db }

func (t *Target) State(ctx context.Context, v rgpipe.Variant) (rgpipe.State, error) {
	state := rgpipe.EmptyState()

	rows, err := t.db.QueryContext(ctx, "SELECT subject_id, subject_name FROM subject ORDER BY subject_id")
	if err != nil {
		return state, fmt.Errorf("read subjects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s rgpipe.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return state, fmt.Errorf("read subjects: %w", err)
		}
		state.Subjects = append(state.Subjects, s)
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("read subjects: %w", err)
	}

	counters := map[rgpipe.Table]*int64{
		rgpipe.TableSession:     &state.NextSession,
		rgpipe.TableStimulation: &state.NextStimulation,
		rgpipe.TableSpikeGroup:  &state.NextSpikeGroup,
		rgpipe.TableSpike:       &state.NextSpike,
	}
	for _, table := range v.Tables() {
		next, ok := counters[table]
		if !ok {
			continue
		}
		var top int64
		q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", store.IDColumn(table), table)
		if err := t.db.QueryRowContext(ctx, q).Scan(&top); err != nil {
			return state, fmt.Errorf("read max id of %s: %w", table, err)
		}
		*next = top + 1
	}
	return state, nil
}

func insertSQL(table rgpipe.Table, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
}

// bind converts values SQLite has no native type for.
func bind(row []any) []any {
	for i, val := range row {
		switch x := val.(type) {
		case time.Time:
			row[i] = x.Format(dateLayout)
		}
	}
	return row
}

func (t *Target) AppendTable(ctx context.Context, v rgpipe.Variant, table rgpipe.Table, b *rgpipe.Batch) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, store.Columns(v, table)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range store.Rows(v, table, b) {
		if _, err := stmt.ExecContext(ctx, bind(row)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (t *Target) RecordRun(ctx context.Context, run rgpipe.IngestRun) error {
	args := store.RunRow(run)
	args[0] = run.RunID.String()
	args[len(args)-1] = run.LoadedAt.UTC().Format(timeLayout)

	q := insertSQL(rgpipe.TableIngestRun, store.Columns(0, rgpipe.TableIngestRun))
	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (t *Target) Counts(ctx context.Context, v rgpipe.Variant) (map[rgpipe.Table]int64, error) {
	counts := make(map[rgpipe.Table]int64)
	for _, table := range v.Tables() {
		var n int64
		if err := t.db.QueryRowContext(ctx, "SELECT count(*) FROM "+string(table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (t *Target) RecentRuns(ctx context.Context, limit int) ([]rgpipe.IngestRun, error) {
	q := fmt.Sprintf("SELECT %s FROM ingest_run ORDER BY loaded_at DESC, run_id LIMIT ?",
		strings.Join(store.Columns(0, rgpipe.TableIngestRun), ", "))
	rows, err := t.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	defer rows.Close()

	var runs []rgpipe.IngestRun
	for rows.Next() {
		var (
			r      store.RunScan
			loaded string
		)
		if err := rows.Scan(r.Dest(&loaded)...); err != nil {
			return nil, fmt.Errorf("read runs: %w", err)
		}
		if r.LoadedAt, err = time.Parse(timeLayout, loaded); err != nil {
			return nil, fmt.Errorf("run %s: loaded_at %q: %w", r.RunID, loaded, err)
		}
		run, err := r.Run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (t *Target) CreateTables(ctx context.Context, v rgpipe.Variant) error {
	var ddl string
	switch v {
	case rgpipe.VariantFlat:
		ddl = flatDDL
	case rgpipe.VariantGrouped:
		ddl = groupedDDL
	default:
		return fmt.Errorf("variant %s: %w", v, rgpipe.ErrInvalidConfig)
	}
	if _, err := t.db.ExecContext(ctx, ddl+"\n"+journalDDL); err != nil {
		return fmt.Errorf("create tables in %s: %w", t.path, err)
	}
	t.logger.Verbose("Created %s tables in %s", v, t.path)
	return nil
}

func (t *Target) DropTables(ctx context.Context, v rgpipe.Variant) error {
	for _, table := range store.DropOrder(v) {
		if _, err := t.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+string(table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		t.logger.Verbose("Dropped %s", table)
	}
	return nil
}

func (t *Target) Close() error {
	_, _ = t.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return t.db.Close()
}

var _ rgpipe.Target = (*Target)(nil)
