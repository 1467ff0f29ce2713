package git

import (
	"github.com/go-git/go-git/v5"
)

// SourceCommit returns the HEAD commit of the repository containing path,
// searching parent directories. It returns an empty string when path is not
// inside a repository or HEAD is unborn.
func SourceCommit(path string) string {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
