package credentials

import (
	"errors"
	"fmt"
	"strings"
)

// Credential is the durable result of a successful login.
type Credential struct {
	ServerURL string `json:"convexUrl" yaml:"convexUrl"`
	Token     string `json:"token" yaml:"token"`
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("credential server URL is empty")
	}
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("credential token is empty")
	}
	return nil
}

// Store reads and writes the one local credential. Read reports absence with
// ok=false and a nil error; Clear on an absent credential is a no-op.
type Store interface {
	Read() (cred Credential, ok bool, err error)
	Write(cred Credential) error
	Clear() error
}

const (
	BackendFile     = "file"
	BackendKeychain = "keychain"
)

// NewStore picks a backend by name. An empty name selects the file backend.
func NewStore(backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		if path == "" {
			return nil, errors.New("credential path is required")
		}
		return &FileStore{Path: path}, nil
	case BackendKeychain:
		return &KeyringStore{Service: DefaultKeyringService, User: DefaultKeyringUser}, nil
	default:
		return nil, fmt.Errorf("unsupported token storage backend: %s", backend)
	}
}
