package rgpipe

import "context"

// Approver handles user confirmation before destructive operations,
// such as dropping the retinal tables during `build --clean`.
//
// Implementations:
//   - ForcedApprover: Shows countdown and automatically approves
//   - InteractiveApprover: Prompts user to type the schema name for confirmation
type Approver interface {
	// RequestApproval asks for confirmation before dropping every table in target.
	// It returns true if approved and false if denied.
	RequestApproval(ctx context.Context, target string) (bool, error)
}
