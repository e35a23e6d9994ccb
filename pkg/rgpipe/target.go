package rgpipe

import "context"

// Target is a relational store holding the retinal tables.
//
// Implementations:
//   - postgres.Target: PostgreSQL via pgx, COPY per table
//   - sqlite.Target: local SQLite file via modernc.org/sqlite
//   - memory.Target: in-process tables for tests and dry runs
type Target interface {
	// Name identifies the target in prompts and logs (schema name or file path).
	Name() string

	// State returns the known subjects and id continuation counters.
	State(ctx context.Context, v Variant) (State, error)

	// AppendTable appends every row batched for table in one call.
	AppendTable(ctx context.Context, v Variant, table Table, b *Batch) error

	// RecordRun appends one row to the ingest_run journal.
	RecordRun(ctx context.Context, run IngestRun) error

	// Counts returns the current row count per table of v.
	Counts(ctx context.Context, v Variant) (map[Table]int64, error)

	// RecentRuns returns up to limit journal rows, newest first.
	RecentRuns(ctx context.Context, limit int) ([]IngestRun, error)

	// CreateTables creates the tables of v if they do not exist.
	CreateTables(ctx context.Context, v Variant) error

	// DropTables drops the tables of v, children first.
	DropTables(ctx context.Context, v Variant) error

	Close() error
}
