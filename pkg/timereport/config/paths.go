package config

import (
	"os"
	"path/filepath"
)

const (
	// ConfigDirEnv relocates every per-user file, mainly for test isolation.
	ConfigDirEnv = "TIMEREPORT_CONFIG_DIR"

	defaultConfigDirName = "timereport"
	credentialFileName   = "config.json"
	settingsFileName     = "settings.yaml"
)

func DefaultConfigDir() string {
	if env := os.Getenv(ConfigDirEnv); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+defaultConfigDirName)
	}
	return filepath.Join(home, ".config", defaultConfigDirName)
}

// CredentialPath is the location of the persisted login record inside dir.
func CredentialPath(dir string) string {
	return filepath.Join(dir, credentialFileName)
}

func SettingsPath(dir string) string {
	return filepath.Join(dir, settingsFileName)
}
