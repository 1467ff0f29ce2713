// Package publish commits a finished build as a single-commit history and
// force-pushes it to the publish branch, but only from the canonical repository.
package publish

import "strings"

// RepositoryEnv is the variable CI sets to the owner/name of the triggering repository.
const RepositoryEnv = "GITHUB_REPOSITORY"

// Guard restricts publishing to one canonical repository, so forks running the
// same workflow do nothing.
type Guard struct {
	Canonical string
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed    bool
	Repository string
	Reason     string
}

// Check compares repository with the canonical one. An empty canonical value
// disables the guard.
func (g Guard) Check(repository string) Decision {
	d := Decision{Allowed: true, Repository: repository}
	canonical := strings.TrimSpace(g.Canonical)
	switch {
	case canonical == "":
		d.Reason = "no canonical repository configured"
	case repository == "":
		d.Allowed = false
		d.Reason = "triggering repository unknown; set " + RepositoryEnv + " or --repository"
	case !strings.EqualFold(strings.TrimSpace(repository), canonical):
		d.Allowed = false
		d.Reason = "repository " + repository + " is not the canonical " + canonical
	default:
		d.Reason = "canonical repository"
	}
	return d
}

// TriggeringRepository returns the explicit value when given, otherwise the
// CI-provided repository name.
func TriggeringRepository(explicit string, getenv func(string) string) string {
	if explicit != "" {
		return explicit
	}
	return getenv(RepositoryEnv)
}
