package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spregistry/spreg/internal/metadata"
	"github.com/spregistry/spreg/pkg/spreg"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// Environment variables that override file values.
const (
	EnvDatabaseURL = "SPREG_DATABASE_URL"
	EnvSecretKey   = "SPREG_SECRET_KEY"
	EnvPublishRepo = "SPREG_PUBLISH_REPO"
	EnvGitToken    = "SPREG_GIT_TOKEN"
)

type DatabaseConfig struct {
	URL            string `yaml:"url,omitempty"`
	Host           string `yaml:"host,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Database       string `yaml:"database,omitempty"`
	SSLMode        string `yaml:"sslmode,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
}

type SecretsConfig struct {
	// Key is the Fernet key used to encrypt new OIDC client secrets.
	Key string `yaml:"key,omitempty"`
	// OldKeys still decrypt secrets written before a key rotation.
	OldKeys []string `yaml:"old_keys,omitempty"`
}

type MetadataConfig struct {
	MFAContext            string   `yaml:"mfa_context,omitempty"`
	PrivacyPolicyFallback bool     `yaml:"privacy_policy_fallback"`
	NameIDFormats         []string `yaml:"nameid_formats,omitempty"`
	LDAPFlatLists         bool     `yaml:"ldap_flat_lists"`
}

type PublishConfig struct {
	Repository  string `yaml:"repository,omitempty"`
	Remote      string `yaml:"remote,omitempty"`
	Branch      string `yaml:"branch,omitempty"`
	SAMLFile    string `yaml:"saml_file,omitempty"`
	LDAPFile    string `yaml:"ldap_file,omitempty"`
	LDAPDir     string `yaml:"ldap_dir,omitempty"`
	OIDCFile    string `yaml:"oidc_file,omitempty"`
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Token       string `yaml:"-"`
	LockTimeout string `yaml:"lock_timeout,omitempty"`
	// Filter selects which providers are published: "production" or "test".
	Filter string `yaml:"filter,omitempty"`
	// SecretMode is how OIDC client secrets are written to the repository.
	// The default, encrypted, expects the IdP to hold the Fernet key.
	SecretMode string `yaml:"secret_mode,omitempty"`
}

// LockWait returns the parsed lock timeout, or the default.
func (p PublishConfig) LockWait() time.Duration {
	if d, err := time.ParseDuration(p.LockTimeout); err == nil && d > 0 {
		return d
	}
	return spreg.DefaultLockTimeout
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Metadata MetadataConfig `yaml:"metadata"`
	Publish  PublishConfig  `yaml:"publish"`
}

// Load reads path, which may be the config file itself or a directory
// containing spreg.yaml, and applies defaults.
func Load(path string) (*Config, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, spreg.DefaultConfigFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with defaults only, used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Metadata.MFAContext == "" {
		c.Metadata.MFAContext = spreg.DefaultMFAContext
	}
	if len(c.Metadata.NameIDFormats) == 0 {
		c.Metadata.NameIDFormats = append([]string(nil), spreg.DefaultNameIDFormats...)
	}
	p := &c.Publish
	setDefault(&p.Remote, "origin")
	setDefault(&p.Branch, "main")
	setDefault(&p.SAMLFile, spreg.DefaultSAMLFile)
	setDefault(&p.LDAPFile, spreg.DefaultLDAPFile)
	setDefault(&p.LDAPDir, spreg.DefaultLDAPDir)
	setDefault(&p.OIDCFile, spreg.DefaultOIDCFile)
	setDefault(&p.AuthorName, "spreg")
	setDefault(&p.AuthorEmail, "spreg@localhost")
	setDefault(&p.Filter, "production")
	setDefault(&p.SecretMode, string(metadata.SecretEncrypted))
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDatabaseURL); v != "" {
		c.Database.URL = v
	}
	if v := getenv(EnvSecretKey); v != "" {
		c.Secrets.Key = v
	}
	if v := getenv(EnvPublishRepo); v != "" {
		c.Publish.Repository = v
	}
	if v := getenv(EnvGitToken); v != "" {
		c.Publish.Token = v
	}
}

// Validate checks the values needed by every command. Command-specific
// requirements (a repository for publish, a key for secrets) are checked
// where they are used.
func (c *Config) Validate() error {
	var errs []error

	if _, err := spreg.ParseAuthMethod(c.Database.AuthMethod); err != nil {
		errs = append(errs, fmt.Errorf("database.auth_method: %w", err))
	}
	if c.Publish.Filter != "production" && c.Publish.Filter != "test" {
		errs = append(errs, fmt.Errorf("publish.filter must be production or test, got %q: %w", c.Publish.Filter, spreg.ErrInvalidConfig))
	}
	if c.Publish.LockTimeout != "" {
		if _, err := time.ParseDuration(c.Publish.LockTimeout); err != nil {
			errs = append(errs, fmt.Errorf("publish.lock_timeout: %v: %w", err, spreg.ErrInvalidConfig))
		}
	}
	if _, err := metadata.ParseSecretMode(c.Publish.SecretMode); err != nil {
		errs = append(errs, fmt.Errorf("publish.secret_mode: %w", err))
	}
	for _, p := range []string{c.Publish.SAMLFile, c.Publish.LDAPFile, c.Publish.LDAPDir, c.Publish.OIDCFile} {
		if filepath.IsAbs(p) || !filepath.IsLocal(p) {
			errs = append(errs, fmt.Errorf("publish path %q must be relative to the repository: %w", p, spreg.ErrInvalidConfig))
		}
	}
	errs = append(errs, c.Publish.validateLDAPDir()...)

	return errors.Join(errs...)
}

// validateLDAPDir rejects an LDAP directory that would hold another managed
// file. Stale XML files in that directory are deleted on regeneration.
func (p PublishConfig) validateLDAPDir() []error {
	dir := filepath.Clean(p.LDAPDir)
	if dir == "." {
		return []error{fmt.Errorf("publish.ldap_dir must be a subdirectory of the repository: %w", spreg.ErrInvalidConfig)}
	}
	var errs []error
	for _, f := range []string{p.SAMLFile, p.LDAPFile, p.OIDCFile} {
		if filepath.Dir(filepath.Clean(f)) == dir {
			errs = append(errs, fmt.Errorf("publish file %q must not be inside publish.ldap_dir %q: %w", f, p.LDAPDir, spreg.ErrInvalidConfig))
		}
	}
	return errs
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
