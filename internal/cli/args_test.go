package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRequireEntityID(t *testing.T) {
	cmd := &cobra.Command{
		Use: "history <entity-id>",
	}

	t.Run("returns error when no args", func(t *testing.T) {
		err := RequireEntityID(cmd, []string{})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "missing required argument: <entity-id>") {
			t.Errorf("expected error to contain 'missing required argument: <entity-id>', got: %s", err.Error())
		}
	})

	t.Run("returns nil when arg provided", func(t *testing.T) {
		if err := RequireEntityID(cmd, []string{"https://sp.example.org"}); err != nil {
			t.Errorf("expected nil, got: %v", err)
		}
	})

	t.Run("returns error when too many args", func(t *testing.T) {
		err := RequireEntityID(cmd, []string{"a", "b"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "accepts 1 arg") {
			t.Errorf("expected error to contain 'accepts 1 arg', got: %s", err.Error())
		}
	})
}

func TestRequireMetadataFile(t *testing.T) {
	cmd := &cobra.Command{
		Use: "import <file>",
	}

	err := RequireMetadataFile(cmd, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing required argument: <file>") {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireMetadataFile(cmd, []string{"metadata.xml"}); err != nil {
		t.Errorf("expected nil, got: %v", err)
	}
}
