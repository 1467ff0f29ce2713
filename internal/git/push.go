package git

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// RemoteName is the remote the snapshot is pushed to.
const RemoteName = "origin"

// ForcePush replaces the remote branch with the snapshot's branch.
func (s *Snapshot) ForcePush(ctx context.Context, remoteURL string, auth transport.AuthMethod) error {
	if _, err := s.Repo.CreateRemote(&config.RemoteConfig{Name: RemoteName, URLs: []string{remoteURL}}); err != nil {
		return ClassifyGitError(err, "remote", remoteURL)
	}

	ref := plumbing.NewBranchReferenceName(s.Branch)
	spec := config.RefSpec("+" + ref.String() + ":" + ref.String())
	err := s.Repo.PushContext(ctx, &git.PushOptions{
		RemoteName: RemoteName,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       auth,
		Force:      true,
	})
	if stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		slog.Info("Remote branch already up to date", logfields.Branch(s.Branch))
		return nil
	}
	if err != nil {
		return ClassifyGitError(err, "push", remoteURL)
	}
	slog.Info("Pushed snapshot", logfields.Branch(s.Branch), logfields.Commit(s.Commit.String()[:8]))
	return nil
}

// RemoteBranchHead returns the commit a remote branch points at, or an empty
// string when the branch does not exist.
func RemoteBranchHead(ctx context.Context, remoteURL, branch string, auth transport.AuthMethod) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{Name: RemoteName, URLs: []string{remoteURL}})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		if stderrors.Is(err, transport.ErrEmptyRemoteRepository) {
			return "", nil
		}
		return "", ClassifyGitError(err, "ls-remote", remoteURL)
	}
	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Type() == plumbing.HashReference && ref.Name() == want {
			return ref.Hash().String(), nil
		}
	}
	return "", nil
}
