// Package auth selects and builds git credentials for the publish remote.
package auth

import (
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// TokenUsername is the user name paired with an access token over HTTPS.
const TokenUsername = "x-access-token"

// Type names an authentication method.
type Type string

const (
	TypeNone  Type = "none"
	TypeToken Type = "token"
	TypeSSH   Type = "ssh"
)

// Credentials are the resolved inputs of one provider.
type Credentials struct {
	Type     Type
	Username string
	Token    string
	TokenEnv string // variable the token was read from, for diagnostics
	KeyPath  string
}

// Manager provides a high-level interface for authentication operations.
type Manager struct {
	providers map[Type]Provider
}

// NewManager creates a new authentication manager with the standard providers.
func NewManager() *Manager {
	m := &Manager{providers: make(map[Type]Provider)}
	m.Register(NoneProvider{})
	m.Register(TokenProvider{})
	m.Register(SSHProvider{})
	return m
}

// Register adds a provider, replacing any provider of the same type.
func (m *Manager) Register(p Provider) {
	m.providers[p.Type()] = p
}

// CreateAuth validates creds and builds the transport auth method.
// Every failure is an auth error so it maps to the credentials exit code.
func (m *Manager) CreateAuth(creds Credentials) (transport.AuthMethod, error) {
	if creds.Type == "" {
		creds.Type = TypeNone
	}
	p, ok := m.providers[creds.Type]
	if !ok {
		return nil, errors.AuthError("unsupported authentication type").
			WithContext("type", string(creds.Type)).
			Build()
	}
	if err := p.ValidateConfig(creds); err != nil {
		return nil, errors.WrapError(err, errors.CategoryAuth, "credential check failed").
			Fatal().
			WithContext("provider", p.Name()).
			Build()
	}
	method, err := p.CreateAuth(creds)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryAuth, "failed to create authentication").
			Fatal().
			WithContext("provider", p.Name()).
			Build()
	}
	return method, nil
}

// TypeForRemote picks the authentication type a remote URL needs:
// token for http(s), ssh for ssh and scp-like URLs, none for local paths.
func TypeForRemote(remote string) Type {
	if u, err := url.Parse(remote); err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return TypeToken
		case "ssh", "git+ssh":
			return TypeSSH
		case "file":
			return TypeNone
		}
	}
	// scp-like syntax: git@github.com:owner/repo.git
	if at, colon := strings.Index(remote, "@"), strings.Index(remote, ":"); at > 0 && colon > at {
		return TypeSSH
	}
	return TypeNone
}

// ForRemote resolves the credentials for pushing to remote, reading the
// token from the environment variable named in the publish settings.
func ForRemote(remote string, cfg config.PublishConfig, getenv func(string) string) Credentials {
	creds := Credentials{Type: TypeForRemote(remote)}
	switch creds.Type {
	case TypeToken:
		creds.TokenEnv = cfg.TokenEnv
		if cfg.TokenEnv != "" {
			creds.Token = getenv(cfg.TokenEnv)
		}
	case TypeSSH:
		creds.KeyPath = cfg.SSHKey
	}
	return creds
}
