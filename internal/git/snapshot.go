package git

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/fsops"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Author identifies the committer of a snapshot.
type Author struct {
	Name  string
	Email string
}

// Snapshot is a freshly initialised repository holding one commit.
type Snapshot struct {
	Repo   *git.Repository
	Dir    string
	Branch string
	Commit plumbing.Hash
}

// CommitSnapshot turns dir into a new repository whose only commit contains
// every file below dir, on branch. Any existing repository metadata in dir is
// removed first, so no prior history survives.
func CommitSnapshot(dir, branch, message string, author Author, when time.Time) (*Snapshot, error) {
	if err := fsops.RemoveAll(filepath.Join(dir, git.GitDirName)); err != nil {
		return nil, err
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, ClassifyGitError(err, "init", dir)
	}

	ref := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
		return nil, ClassifyGitError(err, "checkout", dir)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, ClassifyGitError(err, "worktree", dir)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, ClassifyGitError(err, "add", dir)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: author.Name, Email: author.Email, When: when},
	})
	if err != nil {
		if err == git.ErrEmptyCommit {
			return nil, errors.ValidationError("nothing to publish: output directory is empty").
				WithContext("path", dir).
				Build()
		}
		return nil, ClassifyGitError(err, "commit", dir)
	}

	slog.Info("Snapshot committed", logfields.Branch(branch), logfields.Commit(hash.String()[:8]), logfields.Path(dir))
	return &Snapshot{Repo: repo, Dir: dir, Branch: branch, Commit: hash}, nil
}
