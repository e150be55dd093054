package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	DefaultKeyringService = "timereport"
	DefaultKeyringUser    = "credential"
)

// KeyringStore keeps the same JSON record as FileStore in the OS keychain.
type KeyringStore struct {
	Service string
	User    string
}

func (s *KeyringStore) Read() (Credential, bool, error) {
	secret, err := keyring.Get(s.Service, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("failed to read credential from keychain: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return Credential{}, false, fmt.Errorf("failed to parse keychain credential: %w", err)
	}
	if err := cred.Validate(); err != nil {
		return Credential{}, false, fmt.Errorf("invalid keychain credential: %w", err)
	}
	return cred, true, nil
}

func (s *KeyringStore) Write(cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	content, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(s.Service, s.User, string(content)); err != nil {
		return fmt.Errorf("failed to save credential in keychain: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove credential from keychain: %w", err)
	}
	return nil
}
