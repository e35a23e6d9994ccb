// Package flatten turns decoded session records into relational rows.
//
// A load never asks the database for ids. Instead the caller reads the
// target's State (known subjects plus the next free id of every table) and
// Flatten assigns surrogate ids locally, in the exact order rows are
// appended, returning the advanced State next to the rows:
//
//	state, _ := target.State(ctx, variant)
//	batch, next, err := flatten.Flatten(variant, sessions, state)
//
// # Layouts
//
// VariantFlat emits one Session row per stimulation, each pointing at its
// Stimulation; a session without stimulations still gets one Session row
// with a nil stimulation reference. Spike rows point at the Stimulation.
//
// VariantGrouped emits exactly one Session row per session. Stimulation rows
// point at the Session, SpikeGroup rows at the Stimulation and Spike rows at
// the SpikeGroup.
//
// # Subjects
//
// Subject rows are emitted once per name that is neither in State nor seen
// earlier in the same input. Names are compared exactly.
//
// Flatten is not idempotent: flattening the same sessions against the
// state that results from loading them yields fresh rows for everything
// except subjects.
package flatten
