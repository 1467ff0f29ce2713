package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Provider turns credentials of one type into a go-git AuthMethod.
type Provider interface {
	// Type returns the authentication type this provider handles.
	Type() Type

	// CreateAuth creates a transport.AuthMethod from the credentials.
	// Returns nil, nil for no authentication.
	CreateAuth(creds Credentials) (transport.AuthMethod, error)

	// ValidateConfig checks the credentials before any remote is contacted.
	ValidateConfig(creds Credentials) error

	// Name returns a human-readable name for logging.
	Name() string
}

// NoneProvider handles local and file remotes.
type NoneProvider struct{}

func (NoneProvider) Type() Type { return TypeNone }

func (NoneProvider) CreateAuth(Credentials) (transport.AuthMethod, error) { return nil, nil }

func (NoneProvider) ValidateConfig(Credentials) error { return nil }

func (NoneProvider) Name() string { return "NoneProvider" }

// TokenProvider handles http(s) remotes with an access token.
type TokenProvider struct{}

func (TokenProvider) Type() Type { return TypeToken }

// CreateAuth uses the token as the password of HTTP basic auth, which is how
// GitHub accepts workflow tokens.
func (p TokenProvider) CreateAuth(creds Credentials) (transport.AuthMethod, error) {
	if err := p.ValidateConfig(creds); err != nil {
		return nil, err
	}
	username := creds.Username
	if username == "" {
		username = TokenUsername
	}
	return &http.BasicAuth{Username: username, Password: creds.Token}, nil
}

func (TokenProvider) ValidateConfig(creds Credentials) error {
	if creds.Token == "" {
		if creds.TokenEnv != "" {
			return fmt.Errorf("token authentication requires a token; set %s", creds.TokenEnv)
		}
		return fmt.Errorf("token authentication requires a token")
	}
	return nil
}

func (TokenProvider) Name() string { return "TokenProvider" }

// SSHProvider handles ssh remotes with a private key file.
type SSHProvider struct{}

func (SSHProvider) Type() Type { return TypeSSH }

func (SSHProvider) CreateAuth(creds Credentials) (transport.AuthMethod, error) {
	keyPath := sshKeyPath(creds)
	publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
	}
	return publicKeys, nil
}

func (SSHProvider) ValidateConfig(creds Credentials) error {
	keyPath := sshKeyPath(creds)
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		return fmt.Errorf("SSH key file does not exist: %s", keyPath)
	}
	return nil
}

func (SSHProvider) Name() string { return "SSHProvider" }

func sshKeyPath(creds Credentials) string {
	if creds.KeyPath != "" {
		return creds.KeyPath
	}
	return filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
}
