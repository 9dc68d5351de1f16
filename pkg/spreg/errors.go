package spreg

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	err := publisher.Commit(ctx, hash, message)
//	if errors.Is(err, spreg.ErrDiffChanged) {
//	    // show the new diff and ask the user to retry
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntity indicates an active service provider already uses the entity ID.
	ErrDuplicateEntity = errors.New("entity already exists")

	// ErrMissingEntityID indicates an entity descriptor without an entityID attribute.
	ErrMissingEntityID = errors.New("missing entity ID")

	// ErrInvalidCertificate indicates certificate data that cannot be decoded as X.509.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrInvalidMetadata indicates metadata XML that cannot be parsed.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrConcurrentModification indicates the current version moved during an update.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrDiffChanged indicates the working copy changed after the diff was shown.
	ErrDiffChanged = errors.New("metadata changed since the diff was computed, please retry")

	// ErrNothingToCommit indicates the working copy has no metadata changes.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrOutOfSync indicates the local and remote repositories diverged after a push.
	ErrOutOfSync = errors.New("repositories out of sync, fix manually")

	// ErrGitFailed indicates a git operation failed.
	ErrGitFailed = errors.New("git operation failed")

	// ErrSecretDecrypt indicates a stored client secret could not be decrypted.
	ErrSecretDecrypt = errors.New("cannot decrypt client secret")

	// ErrApprovalDenied indicates the user denied approval for the operation.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrUnsupportedAuthMethod indicates the requested database authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrInvalidMetadata), errors.Is(err, ErrInvalidCertificate), errors.Is(err, ErrMissingEntityID):
		return ExitInvalidMetadata
	case errors.Is(err, ErrDiffChanged), errors.Is(err, ErrConcurrentModification):
		return ExitRetry
	case errors.Is(err, ErrOutOfSync), errors.Is(err, ErrGitFailed):
		return ExitPublishFailed
	}

	errStr := err.Error()
	switch {
	case strings.HasPrefix(errStr, "unknown flag"),
		strings.HasPrefix(errStr, "unknown shorthand flag"),
		strings.HasPrefix(errStr, "unknown command"),
		strings.HasPrefix(errStr, "accepts "),
		strings.HasPrefix(errStr, "requires at least"),
		strings.HasPrefix(errStr, "required flag"),
		strings.HasPrefix(errStr, "invalid argument"):
		return ExitUsageError
	case strings.Contains(errStr, "failed to connect"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"):
		return ExitConnectionError
	}

	return ExitGeneralError
}
