package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/spregistry/spreg/internal/checksum"
	"github.com/spregistry/spreg/internal/export"
	"github.com/spregistry/spreg/internal/logging"
	"github.com/spregistry/spreg/internal/retry"
	"github.com/spregistry/spreg/pkg/spreg"
)

// Layout names the managed files inside the repository.
type Layout struct {
	SAMLFile string
	LDAPFile string
	LDAPDir  string
	OIDCFile string
}

func (l Layout) withDefaults() Layout {
	if l.SAMLFile == "" {
		l.SAMLFile = spreg.DefaultSAMLFile
	}
	if l.LDAPFile == "" {
		l.LDAPFile = spreg.DefaultLDAPFile
	}
	if l.LDAPDir == "" {
		l.LDAPDir = spreg.DefaultLDAPDir
	}
	if l.OIDCFile == "" {
		l.OIDCFile = spreg.DefaultOIDCFile
	}
	return l
}

func (l Layout) paths() []string {
	return []string{l.SAMLFile, l.LDAPFile, l.LDAPDir, l.OIDCFile}
}

type Options struct {
	Layout Layout

	// Selection chooses the published providers. Validated is always set.
	Selection export.Selection

	LockTimeout time.Duration
}

// File statuses reported by Diff.
const (
	StatusAdded    = "added"
	StatusModified = "modified"
	StatusDeleted  = "deleted"
)

// FileDiff is one changed file.
type FileDiff struct {
	Path    string
	Status  string
	Unified string
}

// Diff is the set of changed managed files.
type Diff struct {
	Files []FileDiff
	Hash  string
}

func (d *Diff) Empty() bool { return len(d.Files) == 0 }

func (d *Diff) paths() []string {
	out := make([]string, len(d.Files))
	for i, f := range d.Files {
		out[i] = f.Path
	}
	return out
}

type Publisher struct {
	repo     Repository
	exporter *export.Exporter
	opts     Options
	calc     checksum.Calculator
	push     *retry.Executor
	logger   spreg.Logger

	mu sync.Mutex
}

func New(repo Repository, exporter *export.Exporter, opts Options, logger spreg.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	opts.Layout = opts.Layout.withDefaults()
	opts.Selection.Validated = true
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = spreg.DefaultLockTimeout
	}
	return &Publisher{
		repo:     repo,
		exporter: exporter,
		opts:     opts,
		calc:     checksum.New(),
		push: retry.Default(retry.GitErrorClassifier{}).WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("push failed (attempt %d), retrying in %s: %v", attempt+1, delay, err)
		}),
		logger: logger,
	}
}

func (p *Publisher) abs(rel string) string {
	return filepath.Join(p.repo.Root(), filepath.FromSlash(rel))
}

// Regenerate writes the metadata files into the working copy and returns
// the paths written or removed.
func (p *Publisher) Regenerate(ctx context.Context) ([]string, error) {
	unlock, err := p.exclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.regenerate(ctx)
}

func (p *Publisher) regenerate(ctx context.Context) ([]string, error) {
	l := p.opts.Layout
	sel := p.opts.Selection
	var touched []string

	for _, f := range []struct {
		format export.Format
		path   string
	}{
		{export.FormatSAML, l.SAMLFile},
		{export.FormatLDAP, l.LDAPFile},
		{export.FormatOIDC, l.OIDCFile},
	} {
		data, err := p.exporter.Generate(ctx, f.format, sel)
		if err != nil {
			return touched, fmt.Errorf("generate %s: %w", f.path, err)
		}
		if err := p.write(f.path, data); err != nil {
			return touched, err
		}
		touched = append(touched, f.path)
	}

	files, err := p.exporter.LDAPFiles(ctx, sel)
	if err != nil {
		return touched, fmt.Errorf("generate %s: %w", l.LDAPDir, err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rel := path.Join(l.LDAPDir, name)
		if err := p.write(rel, files[name]); err != nil {
			return touched, err
		}
		touched = append(touched, rel)
	}

	stale, err := p.removeStale(l.LDAPDir, files)
	touched = append(touched, stale...)
	if err != nil {
		return touched, err
	}
	p.logger.Verbose("regenerated %d files", len(touched))
	return touched, nil
}

func (p *Publisher) write(rel string, data []byte) error {
	target := p.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// removeStale deletes XML files in dir that keep does not name.
func (p *Publisher) removeStale(dir string, keep map[string][]byte) ([]string, error) {
	entries, err := os.ReadDir(p.abs(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
			continue
		}
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		rel := path.Join(dir, e.Name())
		if err := os.Remove(p.abs(rel)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", rel, err)
		}
		p.logger.Verbose("removed stale %s", rel)
		removed = append(removed, rel)
	}
	return removed, nil
}

// Diff compares the managed files of the working copy with HEAD. Files
// that differ only in line endings or trailing whitespace are unchanged.
func (p *Publisher) Diff(ctx context.Context) (*Diff, error) {
	unlock, err := p.exclusive(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.diff(ctx)
}

func (p *Publisher) diff(ctx context.Context) (*Diff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := p.opts.Layout
	head, err := p.repo.HeadFiles(l.paths()...)
	if err != nil {
		return nil, err
	}
	work, err := p.workingFiles()
	if err != nil {
		return nil, err
	}

	all := map[string]struct{}{}
	for name := range head {
		all[name] = struct{}{}
	}
	for name := range work {
		all[name] = struct{}{}
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	slices.Sort(names)

	d := &Diff{}
	var entries []checksum.Entry
	for _, name := range names {
		before, inHead := head[name]
		after, inWork := work[name]
		var status string
		switch {
		case !inHead:
			status = StatusAdded
		case !inWork:
			status = StatusDeleted
		case p.calc.CalculateNormalized(before) != p.calc.CalculateNormalized(after):
			status = StatusModified
		default:
			continue
		}
		unified, err := unifiedDiff(name, before, after)
		if err != nil {
			return nil, err
		}
		d.Files = append(d.Files, FileDiff{Path: name, Status: status, Unified: unified})
		entries = append(entries, checksum.Entry{Path: name, Status: status, Content: after})
	}
	d.Hash = checksum.DiffHash(p.calc, entries)
	return d, nil
}

// workingFiles reads the managed files that exist in the working copy.
func (p *Publisher) workingFiles() (map[string][]byte, error) {
	l := p.opts.Layout
	out := map[string][]byte{}
	for _, rel := range []string{l.SAMLFile, l.LDAPFile, l.OIDCFile} {
		if err := p.readInto(out, rel); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(p.abs(l.LDAPDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", l.LDAPDir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := p.readInto(out, path.Join(l.LDAPDir, e.Name())); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Publisher) readInto(out map[string][]byte, rel string) error {
	data, err := os.ReadFile(p.abs(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}
	out[rel] = data
	return nil
}

func unifiedDiff(name string, before, after []byte) (string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return text, nil
}

// Commit regenerates the metadata files, then commits and pushes the
// changes when they still hash to hash. The repository stays locked from
// regeneration to the remote check. It returns the new commit hash.
func (p *Publisher) Commit(ctx context.Context, hash, message string) (string, error) {
	unlock, err := p.exclusive(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := p.regenerate(ctx); err != nil {
		return "", err
	}
	d, err := p.diff(ctx)
	if err != nil {
		return "", err
	}
	if d.Empty() {
		return "", spreg.ErrNothingToCommit
	}
	if d.Hash != hash {
		p.logger.Info("diff hash is %s, expected %s", d.Hash, hash)
		return "", spreg.ErrDiffChanged
	}

	commit, err := p.repo.Commit(d.paths(), message)
	if err != nil {
		return "", err
	}
	p.logger.Verbose("committed %s", commit)

	if err := p.push.Execute(ctx, p.repo.Push); err != nil {
		return commit, fmt.Errorf("push %s: %v: %w", commit, err, spreg.ErrGitFailed)
	}
	if err := p.repo.Fetch(ctx); err != nil {
		return commit, fmt.Errorf("fetch: %v: %w", err, spreg.ErrGitFailed)
	}
	local, err := p.repo.Head()
	if err != nil {
		return commit, err
	}
	remote, err := p.repo.RemoteHead()
	if err != nil {
		return commit, err
	}
	if local != remote {
		return commit, fmt.Errorf("local %s, remote %s: %w", local, remote, spreg.ErrOutOfSync)
	}
	return commit, nil
}

// exclusive serializes callers of this Publisher and then takes the
// repository lock shared with other processes.
func (p *Publisher) exclusive(ctx context.Context) (func(), error) {
	p.mu.Lock()
	unlock, err := p.lock(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		p.mu.Unlock()
	}, nil
}

// lock takes the cross-process repository lock.
func (p *Publisher) lock(ctx context.Context) (func(), error) {
	fl := flock.New(filepath.Join(p.repo.Root(), ".spreg.lock"))
	lockCtx, cancel := context.WithTimeout(ctx, p.opts.LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil || !locked {
		return nil, fmt.Errorf("repository %s is locked by another publish: %v: %w", p.repo.Root(), err, spreg.ErrGitFailed)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.logger.Warn("release repository lock: %v", err)
		}
	}, nil
}
