// Package logging provides concrete implementations of the rgpipe.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes prefixed lines to stderr (or any writer)
//   - NullLogger: Discards all messages
//   - Recorder: Keeps every message in memory for assertions
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
