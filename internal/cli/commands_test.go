package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spregistry/spreg/internal/config"
	"github.com/spregistry/spreg/internal/importer"
	"github.com/spregistry/spreg/internal/metadata"
	"github.com/spregistry/spreg/internal/registry"
	"github.com/spregistry/spreg/internal/secrets"
	"github.com/spregistry/spreg/internal/store"
	"github.com/spregistry/spreg/pkg/spreg"
)

func TestExportCmd_ArgsValidation(t *testing.T) {
	err := exportCmd.Args(exportCmd, []string{})
	if err == nil {
		t.Fatal("Expected error for missing args")
	}
	exitCode := spreg.ExitCodeForError(err)
	if exitCode != spreg.ExitUsageError {
		t.Errorf("Expected exit code %d (usage), got %d for: %v", spreg.ExitUsageError, exitCode, err)
	}
}

func TestExportCmd_UnknownFormat(t *testing.T) {
	err := runExport(exportCmd, []string{"csv"})
	if !errors.Is(err, spreg.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestExportCmd_UnknownSecretMode(t *testing.T) {
	defer func() { exportFlags = exportFlagValues{} }()
	exportFlags.secretMode = "plain"

	err := runExport(exportCmd, []string{"oidc"})
	if spreg.ExitCodeForError(err) != spreg.ExitConfigError {
		t.Fatalf("Expected config error, got %v", err)
	}
}

func TestExportSelection(t *testing.T) {
	sel := exportSelection(exportFlagValues{
		validated:  true,
		production: true,
		include:    []string{" https://a.example.org ", "", "https://b.example.org"},
	})
	if !sel.Validated || !sel.Production || sel.Test {
		t.Errorf("unexpected flags: %+v", sel)
	}
	want := []string{"https://a.example.org", "https://b.example.org"}
	if strings.Join(sel.EntityIDs, ",") != strings.Join(want, ",") {
		t.Errorf("EntityIDs = %v, want %v", sel.EntityIDs, want)
	}
}

func TestValidateCmd_InvalidModifiedDate(t *testing.T) {
	defer func() { validateModifiedDate = "" }()
	validateModifiedDate = "yesterday"

	err := runValidate(validateCmd, []string{"https://sp.example.org"})
	if err == nil {
		t.Fatal("Expected error for invalid date")
	}
	if code := spreg.ExitCodeForError(err); code != spreg.ExitUsageError {
		t.Errorf("Expected exit code %d, got %d for: %v", spreg.ExitUsageError, code, err)
	}
}

func TestValidateCmd_ModifiedDateRequired(t *testing.T) {
	if validateCmd.Flags().Lookup("modified-date") == nil {
		t.Fatal("modified-date flag missing")
	}
	annotations := validateCmd.Flags().Lookup("modified-date").Annotations
	if _, ok := annotations["cobra_annotation_bash_completion_one_required_flag"]; !ok {
		t.Error("modified-date should be required")
	}
}

func TestPublishCommit_NonInteractiveRequiresForce(t *testing.T) {
	defer func() { publishFlags = publishFlagValues{} }()
	t.Setenv("SPREG_NON_INTERACTIVE", "1")
	publishFlags.hash = "3f9a1c2b"

	err := runPublishCommit(publishCommitCmd, nil)
	if !errors.Is(err, spreg.ErrApprovalDenied) {
		t.Fatalf("Expected ErrApprovalDenied, got %v", err)
	}
	if code := spreg.ExitCodeForError(err); code != spreg.ExitApprovalDenied {
		t.Errorf("Expected exit code %d, got %d", spreg.ExitApprovalDenied, code)
	}
}

func TestPublishOptions(t *testing.T) {
	cfg := config.Default().Publish
	cfg.LDAPDir = "ldap-sp"
	cfg.LockTimeout = "5s"

	opts, err := publishOptions(cfg, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.Selection.Production || opts.Selection.Test {
		t.Errorf("default filter should select production: %+v", opts.Selection)
	}
	if opts.Layout.LDAPDir != "ldap-sp" || opts.Layout.SAMLFile != spreg.DefaultSAMLFile {
		t.Errorf("unexpected layout: %+v", opts.Layout)
	}
	if opts.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v", opts.LockTimeout)
	}

	opts, err = publishOptions(cfg, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Selection.Production || !opts.Selection.Test {
		t.Errorf("--filter test should select test: %+v", opts.Selection)
	}

	if _, err := publishOptions(cfg, "staging"); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `database:
  url: postgresql://spreg@db.example.org/registry
metadata:
  ldap_flat_lists: true
publish:
  filter: test
`
	if err := os.WriteFile(filepath.Join(dir, spreg.DefaultConfigFile), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{config.EnvSecretKey: "key-from-env"}

	cfg, err := loadConfig(dir, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgresql://spreg@db.example.org/registry" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Secrets.Key != "key-from-env" {
		t.Errorf("environment should set the secret key, got %q", cfg.Secrets.Key)
	}
	if cfg.Publish.Filter != "test" || cfg.Publish.SAMLFile != spreg.DefaultSAMLFile {
		t.Errorf("unexpected publish config: %+v", cfg.Publish)
	}

	opts := metadataOptions(cfg)
	if !opts.LDAPFlatLists || opts.MFAContext != spreg.DefaultMFAContext {
		t.Errorf("unexpected metadata options: %+v", opts)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(t.TempDir(), func(string) string { return "" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Publish.Filter != "production" {
		t.Errorf("Filter = %q, want production", cfg.Publish.Filter)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, spreg.DefaultConfigFile), []byte("publish:\n  filter: staging\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := loadConfig(dir, func(string) string { return "" })
	if !errors.Is(err, spreg.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewCipher_RequiresKey(t *testing.T) {
	_, err := newCipher(config.Default())
	if !errors.Is(err, spreg.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestPublishExportOptions(t *testing.T) {
	cfg := config.Default()
	opts, err := publishExportOptions(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SecretMode != metadata.SecretEncrypted || opts.Decrypter != nil {
		t.Errorf("default should publish encrypted secrets without a decrypter: %+v", opts)
	}

	cfg.Publish.SecretMode = "decrypted"
	if _, err := publishExportOptions(cfg); !errors.Is(err, spreg.ErrInvalidConfig) {
		t.Fatalf("decrypted without a key: expected ErrInvalidConfig, got %v", err)
	}

	key, err := secrets.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Secrets.Key = key
	opts, err = publishExportOptions(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.SecretMode != metadata.SecretDecrypted || opts.Decrypter == nil {
		t.Errorf("decrypted mode should carry the cipher: %+v", opts)
	}
}

func TestPrintImportResult(t *testing.T) {
	res := &importer.Result{Entities: map[string]importer.Outcome{
		"https://a.example.org": importer.OutcomeCreated,
		"https://b.example.org": importer.OutcomeSkipped,
	}}
	res.Messages.Add(metadata.LevelWarning, "https://a.example.org", "unsupported binding %s", "urn:x")
	res.Messages.Add(metadata.LevelInfo, "https://b.example.org", "already exists")
	res.Messages.Add(metadata.LevelDebug, "https://a.example.org", "duplicate certificate")

	var out, errOut bytes.Buffer
	printImportResult(&out, &errOut, res, 1)

	if !strings.Contains(errOut.String(), "warning: https://a.example.org: unsupported binding urn:x") {
		t.Errorf("warnings should go to stderr, got %q", errOut.String())
	}
	if !strings.Contains(out.String(), "info: https://b.example.org: already exists") {
		t.Errorf("info missing from stdout: %q", out.String())
	}
	if strings.Contains(out.String(), "duplicate certificate") {
		t.Error("debug message shown at verbosity 1")
	}
	if !strings.Contains(out.String(), "1 created, 0 updated, 0 unchanged, 1 skipped") {
		t.Errorf("summary missing: %q", out.String())
	}
}

func TestPrintHistory(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	v1 := spreg.NewServiceProvider("my-client", spreg.ServiceTypeOIDC)
	v1.Version = 1
	v1.UpdatedAt = t1
	v1.Validated = &t1
	v1.EndAt = &t2
	v1.ClientSecret = "token-one"

	v2 := v1.Clone()
	v2.Version = 2
	v2.UpdatedAt = t2
	v2.EndAt = nil
	v2.Validated = nil
	v2.ClientSecret = "token-two"
	v2.Scopes = []string{"openid", "email"}

	var out bytes.Buffer
	printHistory(&out, []registry.Revision{
		{Provider: v1},
		{Provider: v2, Changes: spreg.DiffFields(v1, v2)},
	})
	text := out.String()

	for _, want := range []string{
		"VERSION", "2026-03-01T10:00:00Z", "version 2:",
		"Scopes (oidc): [] -> [openid, email]",
		"Client secret (oidc): " + spreg.ObfuscatedSecret,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("history output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "token-two") {
		t.Error("client secret leaked into history output")
	}
}

func TestReadSecret(t *testing.T) {
	var prompt bytes.Buffer
	got, err := readSecret(strings.NewReader("s3cret\r\nignored\n"), &prompt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q, want s3cret", got)
	}

	got, err = readSecret(strings.NewReader("no-newline"), &prompt)
	if err != nil || got != "no-newline" {
		t.Errorf("got %q, %v", got, err)
	}

	if _, err := readSecret(strings.NewReader("\n"), &prompt); !errors.Is(err, spreg.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for empty secret, got %v", err)
	}
}

func TestParseCatalog(t *testing.T) {
	attrs, err := parseCatalog([]byte(`
- friendly_name: mail
  name: urn:oid:0.9.2342.19200300.100.1.3
  public_saml: true
  public_oidc: true
  oidc_claim: email
- friendly_name: cn
  name: urn:oid:2.5.4.3
  public_ldap: true
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attrs) != 2 {
		t.Fatalf("got %d attributes", len(attrs))
	}
	if !attrs[0].PublicSAML || attrs[0].OIDCClaim != "email" || attrs[0].PublicLDAP {
		t.Errorf("unexpected first attribute: %+v", attrs[0])
	}
	if attrs[0].ID == attrs[1].ID {
		t.Error("attributes should get distinct IDs")
	}

	for name, doc := range map[string]string{
		"missing name": "- friendly_name: mail\n",
		"duplicate":    "- {friendly_name: mail, name: a}\n- {friendly_name: mail, name: b}\n",
		"not a list":   "friendly_name: mail\n",
	} {
		if _, err := parseCatalog([]byte(doc)); !errors.Is(err, spreg.ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestLoadCatalog_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	attrs, err := parseCatalog([]byte("- {friendly_name: mail, name: urn:oid:0.9.2342.19200300.100.1.3}\n- {friendly_name: cn, name: urn:oid:2.5.4.3}\n"))
	if err != nil {
		t.Fatal(err)
	}

	added, err := loadCatalog(ctx, st, attrs)
	if err != nil || added != 2 {
		t.Fatalf("first load: added %d, err %v", added, err)
	}

	again, err := parseCatalog([]byte("- {friendly_name: MAIL, name: urn:oid:other}\n- {friendly_name: sn, name: urn:oid:2.5.4.4}\n"))
	if err != nil {
		t.Fatal(err)
	}
	added, err = loadCatalog(ctx, st, again)
	if err != nil || added != 1 {
		t.Fatalf("second load: added %d, err %v", added, err)
	}

	var buf bytes.Buffer
	err = st.View(ctx, func(tx spreg.Tx) error {
		list, err := tx.Attributes(ctx)
		printCatalog(&buf, list)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"mail", "cn", "sn"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("catalog listing missing %s:\n%s", name, buf.String())
		}
	}
}
