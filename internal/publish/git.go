package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/spregistry/spreg/pkg/spreg"
)

// Repository is the git working copy metadata is published to. Paths are
// slash separated and relative to Root.
type Repository interface {
	Root() string

	// HeadFiles returns the content committed at HEAD of every file that
	// equals one of prefixes or lies below it. An empty repository has no
	// files.
	HeadFiles(prefixes ...string) (map[string][]byte, error)

	// Commit stages paths, including deletions, and commits them.
	Commit(paths []string, message string) (string, error)

	Push(ctx context.Context) error
	Fetch(ctx context.Context) error

	// Head and RemoteHead return the commit hashes of the local branch and
	// of its remote tracking branch.
	Head() (string, error)
	RemoteHead() (string, error)
}

// GitOptions configure a GitRepository.
type GitOptions struct {
	Remote      string
	Branch      string
	AuthorName  string
	AuthorEmail string

	// Username and Token authenticate HTTPS remotes. Empty values use the
	// transport defaults.
	Username string
	Token    string
}

// GitRepository implements Repository on a local clone.
type GitRepository struct {
	root string
	repo *git.Repository
	opts GitOptions
	now  func() time.Time
}

// OpenGit opens the working copy at root.
func OpenGit(root string, opts GitOptions) (*GitRepository, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %v: %w", root, err, spreg.ErrGitFailed)
	}
	return &GitRepository{root: root, repo: repo, opts: opts, now: time.Now}, nil
}

func (g *GitRepository) Root() string { return g.root }

func (g *GitRepository) headCommit() (*object.Commit, error) {
	ref, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g.repo.CommitObject(ref.Hash())
}

func (g *GitRepository) HeadFiles(prefixes ...string) (map[string][]byte, error) {
	out := map[string][]byte{}
	commit, err := g.headCommit()
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %v: %w", err, spreg.ErrGitFailed)
	}
	if commit == nil {
		return out, nil
	}
	files, err := commit.Files()
	if err != nil {
		return nil, fmt.Errorf("read HEAD tree: %v: %w", err, spreg.ErrGitFailed)
	}
	err = files.ForEach(func(f *object.File) error {
		if !underAny(f.Name, prefixes) {
			return nil
		}
		r, err := f.Reader()
		if err != nil {
			return err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		out[f.Name] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read HEAD files: %v: %w", err, spreg.ErrGitFailed)
	}
	return out, nil
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (g *GitRepository) Commit(paths []string, message string) (string, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %v: %w", err, spreg.ErrGitFailed)
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return "", fmt.Errorf("stage %s: %v: %w", p, err, spreg.ErrGitFailed)
		}
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: g.opts.AuthorName, Email: g.opts.AuthorEmail, When: g.now()},
	})
	if err != nil {
		return "", fmt.Errorf("commit: %v: %w", err, spreg.ErrGitFailed)
	}
	return hash.String(), nil
}

func (g *GitRepository) auth() transport.AuthMethod {
	if g.opts.Token == "" {
		return nil
	}
	user := g.opts.Username
	if user == "" {
		user = "git"
	}
	return &githttp.BasicAuth{Username: user, Password: g.opts.Token}
}

// Push pushes the local branch. Network failures are returned unwrapped so
// the caller can classify them for a retry.
func (g *GitRepository) Push(ctx context.Context) error {
	ref := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", g.opts.Branch, g.opts.Branch))
	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: g.opts.Remote,
		RefSpecs:   []gitconfig.RefSpec{ref},
		Auth:       g.auth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

func (g *GitRepository) Fetch(ctx context.Context) error {
	err := g.repo.FetchContext(ctx, &git.FetchOptions{RemoteName: g.opts.Remote, Auth: g.auth()})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

func (g *GitRepository) Head() (string, error) {
	ref, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("read HEAD: %v: %w", err, spreg.ErrGitFailed)
	}
	return ref.Hash().String(), nil
}

func (g *GitRepository) RemoteHead() (string, error) {
	ref, err := g.repo.Reference(plumbing.NewRemoteReferenceName(g.opts.Remote, g.opts.Branch), true)
	if err != nil {
		return "", fmt.Errorf("read %s/%s: %v: %w", g.opts.Remote, g.opts.Branch, err, spreg.ErrGitFailed)
	}
	return ref.Hash().String(), nil
}

var _ Repository = (*GitRepository)(nil)
