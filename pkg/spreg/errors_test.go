package spreg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spregistry/spreg/pkg/spreg"
)

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, spreg.ExitSuccess},
		{"general error", errors.New("something went wrong"), spreg.ExitGeneralError},
		{"unknown flag", errors.New("unknown flag: --foo"), spreg.ExitUsageError},
		{"unknown shorthand flag", errors.New("unknown shorthand flag: 'x' in -x"), spreg.ExitUsageError},
		{"accepts args", errors.New("accepts 1 arg(s), received 0"), spreg.ExitUsageError},
		{"required flag", errors.New(`required flag(s) "hash" not set`), spreg.ExitUsageError},
		{"connection refused", errors.New("dial tcp: connection refused"), spreg.ExitConnectionError},
		{"connection failed", spreg.ErrConnectionFailed, spreg.ExitConnectionError},
		{"invalid config", fmt.Errorf("publish.repository is required: %w", spreg.ErrInvalidConfig), spreg.ExitConfigError},
		{"unsupported auth", spreg.ErrUnsupportedAuthMethod, spreg.ExitConfigError},
		{"not found", fmt.Errorf("entity https://sp.example.org: %w", spreg.ErrNotFound), spreg.ExitNotFound},
		{"bad certificate", fmt.Errorf("wrap: %w", spreg.ErrInvalidCertificate), spreg.ExitInvalidMetadata},
		{"diff changed", spreg.ErrDiffChanged, spreg.ExitRetry},
		{"out of sync", spreg.ErrOutOfSync, spreg.ExitPublishFailed},
		{"approval denied", spreg.ErrApprovalDenied, spreg.ExitApprovalDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spreg.ExitCodeForError(tt.err); got != tt.want {
				t.Errorf("ExitCodeForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
