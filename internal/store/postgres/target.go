// Package postgres stores the retinal tables in a PostgreSQL schema.
//
// Each table batch is appended with a single COPY. There is no transaction
// spanning tables: a failing COPY leaves earlier tables populated.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/rgpipe/internal/store"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

var (
	//go:embed sql/flat.sql
	flatDDL string

	//go:embed sql/grouped.sql
	groupedDDL string

	//go:embed sql/journal.sql
	journalDDL string
)

// Target appends rows to tables in one schema.
type Target struct {
	pool   *pgxpool.Pool
	schema string
	logger rgpipe.Logger
	closer io.Closer
}

// Open connects through connector. If connector implements io.Closer it is
// closed after the pool by Close.
func Open(ctx context.Context, connector rgpipe.Connector, schema string, logger rgpipe.Logger) (*Target, error) {
	pool, err := connector.Connect(ctx)
	if err != nil {
		if c, ok := connector.(io.Closer); ok {
			c.Close() //nolint:errcheck
		}
		return nil, err
	}
	t := New(pool, schema, logger)
	if c, ok := connector.(io.Closer); ok {
		t.closer = c
	}
	return t, nil
}

// New wraps an existing pool. Close closes it.
func New(pool *pgxpool.Pool, schema string, logger rgpipe.Logger) *Target {
	return &Target{pool: pool, schema: schema, logger: logger}
}

func (t *Target) Name() string { return t.schema }

func (t *Target) ident(table rgpipe.Table) pgx.Identifier {
	return pgx.Identifier{t.schema, string(table)}
}

func (t *Target) qualified(table rgpipe.Table) string {
	return t.ident(table).Sanitize()
}

func (t *Target) render(ddl string) string {
	return strings.ReplaceAll(ddl, "{schema}", pgx.Identifier{t.schema}.Sanitize())
}

func (t *Target) State(ctx context.Context, v rgpipe.Variant) (rgpipe.State, error) {
	state := rgpipe.EmptyState()

	rows, err := t.pool.Query(ctx, fmt.Sprintf(
		"SELECT subject_id, subject_name FROM %s ORDER BY subject_id", t.qualified(rgpipe.TableSubject)))
	if err != nil {
		return state, fmt.Errorf("read subjects: %w", err)
	}
	state.Subjects, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (rgpipe.Subject, error) {
		var s rgpipe.Subject
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	})
	if err != nil {
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
		q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s",
			pgx.Identifier{store.IDColumn(table)}.Sanitize(), t.qualified(table))
		if err := t.pool.QueryRow(ctx, q).Scan(&top); err != nil {
			return state, fmt.Errorf("read max id of %s: %w", table, err)
		}
		*next = top + 1
	}
	return state, nil
}

func (t *Target) AppendTable(ctx context.Context, v rgpipe.Variant, table rgpipe.Table, b *rgpipe.Batch) error {
	rows := store.Rows(v, table, b)
	n, err := t.pool.CopyFrom(ctx, t.ident(table), store.Columns(v, table), pgx.CopyFromRows(rows))
	if err != nil {
		return err
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d rows", n, len(rows))
	}
	return nil
}

func (t *Target) RecordRun(ctx context.Context, run rgpipe.IngestRun) error {
	cols := store.Columns(0, rgpipe.TableIngestRun)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.qualified(rgpipe.TableIngestRun), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	args := store.RunRow(run)
	args[0] = run.RunID.String()
	if _, err := t.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (t *Target) Counts(ctx context.Context, v rgpipe.Variant) (map[rgpipe.Table]int64, error) {
	counts := make(map[rgpipe.Table]int64)
	for _, table := range v.Tables() {
		var n int64
		if err := t.pool.QueryRow(ctx, "SELECT count(*) FROM "+t.qualified(table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (t *Target) RecentRuns(ctx context.Context, limit int) ([]rgpipe.IngestRun, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY loaded_at DESC, run_id LIMIT $1",
		strings.Join(store.Columns(0, rgpipe.TableIngestRun), ", "), t.qualified(rgpipe.TableIngestRun))

	rows, err := t.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rgpipe.IngestRun, error) {
		var r store.RunScan
		if err := row.Scan(r.Dest(&r.LoadedAt)...); err != nil {
			return rgpipe.IngestRun{}, err
		}
		return r.Run()
	})
	if err != nil {
		return nil, fmt.Errorf("read runs: %w", err)
	}
	return runs, nil
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

	sql := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{t.schema}.Sanitize() + ";\n" +
		t.render(ddl) + "\n" + t.render(journalDDL)
	if _, err := t.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create tables in %s: %w", t.schema, err)
	}
	t.logger.Verbose("Created %s tables in schema %s", v, t.schema)
	return nil
}

func (t *Target) DropTables(ctx context.Context, v rgpipe.Variant) error {
	for _, table := range store.DropOrder(v) {
		if _, err := t.pool.Exec(ctx, "DROP TABLE IF EXISTS "+t.qualified(table)+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
		t.logger.Verbose("Dropped %s.%s", t.schema, table)
	}
	return nil
}

func (t *Target) Close() error {
	t.pool.Close()
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// Pool exposes the underlying pool to tests.
func (t *Target) Pool() *pgxpool.Pool { return t.pool }

var _ rgpipe.Target = (*Target)(nil)
