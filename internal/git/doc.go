// Package git writes the publish snapshot: a throwaway repository inside the
// output root holding exactly one commit, force-pushed to the publish branch.
//
// This package handles:
//   - Fresh single-commit histories (any previous .git is discarded)
//   - Force pushes of one branch with an optional auth method
//   - Remote branch lookups without a local clone
//   - Classification of go-git failures into ClassifiedErrors
package git
