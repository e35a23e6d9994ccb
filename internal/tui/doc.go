// Package tui decides whether rgpipe talks to a human and renders its
// summaries either as bordered tables or as tab-separated lines.
package tui
