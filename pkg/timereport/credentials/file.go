package credentials

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileStore keeps the credential as JSON at Path, readable only by the owner.
type FileStore struct {
	Path string
}

func (s *FileStore) Read() (Credential, bool, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("failed to read credential file: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(content, &cred); err != nil {
		return Credential{}, false, fmt.Errorf("failed to parse credential file %s: %w", s.Path, err)
	}
	if err := cred.Validate(); err != nil {
		return Credential{}, false, fmt.Errorf("invalid credential file %s: %w", s.Path, err)
	}
	return cred, true, nil
}

// Write replaces the file through a temp file and rename, so an interrupted
// write leaves either the old record or the new one.
func (s *FileStore) Write(cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential dir: %w", err)
	}
	content, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := atomic.WriteFile(s.Path, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	// atomic keeps the mode of a pre-existing file; force owner-only.
	if err := os.Chmod(s.Path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict credential file permissions: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}
