package cli

import (
	"strings"
	"testing"
)

func TestResolveVersionInfo_LdflagsWin(t *testing.T) {
	origV, origC, origD := version, commit, date
	defer func() { version, commit, date = origV, origC, origD }()

	version, commit, date = "v0.4.0", "a1b2c3d", "2026-05-01T08:00:00Z"
	v, c, d := resolveVersionInfo()
	if v != "v0.4.0" || c != "a1b2c3d" || d != "2026-05-01T08:00:00Z" {
		t.Errorf("ldflags values should be used as is, got %s %s %s", v, c, d)
	}
}

func TestResolveVersionInfo_DevBuild(t *testing.T) {
	origV, origC, origD := version, commit, date
	defer func() { version, commit, date = origV, origC, origD }()

	version, commit, date = "dev", "unknown", "unknown"
	v, c, d := resolveVersionInfo()
	if v == "" || c == "" || d == "" {
		t.Errorf("dev build should never resolve empty values, got %q %q %q", v, c, d)
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	all := strings.Join(names, " ")
	for _, want := range []string{"import", "export", "validate", "history", "delete", "secret", "publish", "schema", "attributes", "version"} {
		if !strings.Contains(all, want) {
			t.Errorf("root command is missing %q (have %s)", want, all)
		}
	}
}
