package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// ErrRevisionMiss marks a lookup that failed because the commit is unknown
// here or the path does not exist at that revision. Early releases predate
// the build id file, so this is an expected outcome.
var ErrRevisionMiss = errors.New("path not present at revision")

// SourceRepo is a bare clone of the release source repository. It exists
// only to read file content at specific commits; no worktree is ever
// checked out.
type SourceRepo struct {
	repo *git.Repository
	dir  string
}

// EnsureSourceRepo opens the bare clone at dir or creates it from url on
// first use. The clone persists between runs so later runs only fetch.
func EnsureSourceRepo(ctx context.Context, dir, url string) (*SourceRepo, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}

	fs := osfs.New(dir)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())

	repo, err := git.Open(storage, nil)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.CloneContext(ctx, storage, nil, &git.CloneOptions{URL: url})
		if err != nil {
			return nil, fmt.Errorf("clone %s: %w", url, err)
		}
		return &SourceRepo{repo: repo, dir: dir}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &SourceRepo{repo: repo, dir: dir}, nil
}

// Fetch refreshes objects from the remote. Callers treat a failure as
// non-fatal and keep resolving against whatever objects already exist.
func (r *SourceRepo) Fetch(ctx context.Context) error {
	err := r.repo.FetchContext(ctx, &git.FetchOptions{})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

// Dir returns the clone location on disk.
func (r *SourceRepo) Dir() string {
	return r.dir
}

// FileAt returns the content of path at the given commit. Unknown commits
// and absent paths both yield ErrRevisionMiss.
func (r *SourceRepo) FileAt(commitHash, path string) (string, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(commitHash))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return "", fmt.Errorf("%w: commit %s", ErrRevisionMiss, commitHash)
	}
	if err != nil {
		return "", fmt.Errorf("resolve commit %s: %w", commitHash, err)
	}

	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", fmt.Errorf("%w: %s at %s", ErrRevisionMiss, path, commitHash)
	}
	if err != nil {
		return "", fmt.Errorf("open %s at %s: %w", path, commitHash, err)
	}

	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, commitHash, err)
	}

	return content, nil
}
