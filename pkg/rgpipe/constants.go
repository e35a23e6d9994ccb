package rgpipe

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration, manifest or source type
	ExitConnectionError = 11 // Failed to connect to database
	ExitApprovalDenied  = 12 // User denied drop approval
	ExitInsertFailed    = 13 // Appending rows to a table failed
	ExitSourceNotFound  = 14 // Data source file missing
	ExitMalformedRecord = 15 // Session record missing a field or badly shaped
)

const (
	// DefaultForceApprovalCountdown is the countdown duration before force approval proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultRetryInitialDelay is the initial delay before the first connection retry.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the maximum delay between connection retries.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the maximum number of connection retries.
	DefaultRetryMaxAttempts = 3

	// DefaultTimeout bounds a whole build or load command.
	DefaultTimeout = 5 * time.Minute

	// SchemaSuffix is appended to the connecting user's name to form the
	// default PostgreSQL schema (alice -> alice_retinal).
	SchemaSuffix = "_retinal"
)
