package spreg

import "context"

// Approver handles user interaction before a metadata commit is pushed.
//
// Implementations:
//   - ForcedApprover: Shows countdown and automatically approves
//   - InteractiveApprover: Prompts user to type the diff hash prefix
type Approver interface {
	// RequestApproval asks for confirmation before committing the diff
	// identified by hash. Returns false when the user declines.
	RequestApproval(ctx context.Context, hash string) (bool, error)
}
