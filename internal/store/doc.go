// Package store appends flattened batches to a target and maps rows to columns.
//
// Insert is the bulk inserter: one AppendTable call per table, in the
// variant's dependency order, no chunking and no transaction spanning tables.
// The first failing table stops the load; tables appended before it keep
// their rows.
//
// The column layout shared by the SQL targets lives here as well, so the
// PostgreSQL and SQLite targets write identical tables.
package store
