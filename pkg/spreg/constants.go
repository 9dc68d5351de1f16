package spreg

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
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to database
	ExitApprovalDenied  = 12 // User denied publish approval
	ExitNotFound        = 13 // Service provider or record not found
	ExitInvalidMetadata = 14 // Metadata could not be parsed
	ExitRetry           = 15 // State moved underneath the command, run it again
	ExitPublishFailed   = 16 // Commit, push or sync check failed
)

const (
	// DefaultForceApprovalCountdown is the countdown duration before a forced publish proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 30 * time.Second

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultLockTimeout bounds how long a publish waits for the repository lock.
	DefaultLockTimeout = 30 * time.Second

	// DefaultConfigFile is the configuration file looked up in the working directory.
	DefaultConfigFile = "spreg.yaml"

	// DefaultMFAContext is the authentication context requested for SPs that force MFA.
	DefaultMFAContext = "https://refeds.org/profile/mfa"

	// ObfuscatedSecret replaces client secrets in OIDC metadata unless disclosure is requested.
	ObfuscatedSecret = "**********"

	// ImportedAttributeReason is stored as the release reason of attributes created by an import.
	ImportedAttributeReason = "Imported from metadata"
)

// Default publication file names inside the metadata repository.
const (
	DefaultSAMLFile = "metadata.xml"
	DefaultLDAPFile = "ldap-metadata.xml"
	DefaultLDAPDir  = "ldap"
	DefaultOIDCFile = "oidc-metadata.json"
)
