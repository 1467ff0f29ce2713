package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/auth"
	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/observability"
)

// ServerURLEnv is the variable CI sets to the forge base URL.
const ServerURLEnv = "GITHUB_SERVER_URL"

// Request describes one publish of an existing build.
type Request struct {
	Config *config.Config
	Paths  config.Paths
	// Repository is the triggering repository, used to derive the remote URL.
	Repository string
}

// Result describes a completed publish.
type Result struct {
	Remote   string
	Branch   string
	Commit   string
	Previous string // remote branch head before the push, if known
	Source   string // project commit the build was made from, if known
}

// Publisher writes the snapshot and pushes it.
type Publisher struct {
	auth   *auth.Manager
	getenv func(string) string
	now    func() time.Time
}

// NewPublisher returns a publisher reading credentials from the process environment.
func NewPublisher() *Publisher {
	return &Publisher{auth: auth.NewManager(), getenv: os.Getenv, now: time.Now}
}

// WithEnv replaces the environment lookup.
func (p *Publisher) WithEnv(getenv func(string) string) *Publisher {
	p.getenv = getenv
	return p
}

// RemoteURL returns the configured remote, or the forge URL of repository.
func RemoteURL(cfg config.PublishConfig, repository string, getenv func(string) string) (string, error) {
	if cfg.RemoteURL != "" {
		return cfg.RemoteURL, nil
	}
	if repository == "" {
		return "", errors.ConfigError("no publish remote: set publish.remote_url or " + RepositoryEnv).Build()
	}
	server := getenv(ServerURLEnv)
	if server == "" {
		server = "https://github.com"
	}
	return strings.TrimSuffix(server, "/") + "/" + repository + ".git", nil
}

// Publish commits the output root as a single commit on the publish branch and
// force-pushes it. Credentials are checked before the output root is touched.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	pub := req.Config.Publish
	remote, err := RemoteURL(pub, req.Repository, p.getenv)
	if err != nil {
		return nil, err
	}
	method, err := p.auth.CreateAuth(auth.ForRemote(remote, pub, p.getenv))
	if err != nil {
		return nil, err
	}

	out := req.Paths.OutputRoot
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		return nil, errors.ValidationError("nothing to publish: output directory missing; run docpublish build first").
			WithContext("path", out).
			Build()
	}

	result := &Result{Remote: redact(remote), Branch: pub.Branch, Source: git.SourceCommit(req.Paths.Root)}
	if prev, err := git.RemoteBranchHead(ctx, remote, pub.Branch, method); err == nil {
		result.Previous = prev
	} else if errors.HasCategory(err, errors.CategoryAuth) {
		return nil, err
	} else {
		observability.DebugContext(ctx, "Could not read remote branch", logfields.Error(err))
	}

	// GitHub Pages skips Jekyll processing when .nojekyll is present.
	if err := os.WriteFile(filepath.Join(out, ".nojekyll"), nil, 0o644); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to write .nojekyll").Build()
	}

	snap, err := git.CommitSnapshot(out, pub.Branch, commitMessage(pub.Message, result.Source),
		git.Author{Name: pub.AuthorName, Email: pub.AuthorEmail}, p.now())
	if err != nil {
		return nil, err
	}
	result.Commit = snap.Commit.String()

	if err := snap.ForcePush(ctx, remote, method); err != nil {
		return result, err
	}
	observability.InfoContext(ctx, "Published documentation",
		logfields.Remote(result.Remote),
		logfields.Branch(result.Branch),
		logfields.Commit(result.Commit))
	return result, nil
}

func commitMessage(message, source string) string {
	if source == "" {
		return message
	}
	return fmt.Sprintf("%s\n\nSource: %s\n", message, source)
}

// redact strips user info so tokens embedded in URLs never reach logs.
func redact(remote string) string {
	scheme, rest, ok := strings.Cut(remote, "://")
	if !ok {
		return remote
	}
	if at := strings.Index(rest, "@"); at >= 0 && at < strings.IndexAny(rest+"/", "/") {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}
