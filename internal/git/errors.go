package git

import (
	stderrors "errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())

	builder := errors.GitError("git "+op+" failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("url", url)

	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired) || stderrors.Is(err, transport.ErrAuthorizationFailed):
		builder.WithCategory(errors.CategoryAuth)
	case stderrors.Is(err, transport.ErrRepositoryNotFound):
		builder.WithCategory(errors.CategoryNotFound)
	case strings.Contains(l, "authentication required") || strings.Contains(l, "authentication failed") ||
		strings.Contains(l, "authorization failed") || strings.Contains(l, "not authorized") ||
		strings.Contains(l, "invalid credentials") || strings.Contains(l, "permission denied") ||
		strings.Contains(l, "could not read username"):
		builder.WithCategory(errors.CategoryAuth)
	case strings.Contains(l, "repository not found") || strings.Contains(l, "does not exist"):
		builder.WithCategory(errors.CategoryNotFound)
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "connection refused") || strings.Contains(l, "timeout") ||
		strings.Contains(l, "no route to host") || strings.Contains(l, "no such host"):
		builder.WithCategory(errors.CategoryNetwork)
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		builder.WithCategory(errors.CategoryConfig)
	}

	return builder.Fatal().Build()
}
