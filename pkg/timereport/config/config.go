package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultAppURL       = "https://timereport.app"
	DefaultCallbackPort = 7284
	DefaultLoginTimeout = 5 * time.Minute

	// DefaultRequestTimeout bounds each call to the backend.
	DefaultRequestTimeout = 30 * time.Second

	TokenStorageFile     = "file"
	TokenStorageKeychain = "keychain"
)

// Settings is the optional settings.yaml next to the credential file. Every
// field has a working default so the file never has to exist.
type Settings struct {
	AppURL         string `yaml:"app-url,omitempty"`
	CallbackPort   int    `yaml:"callback-port,omitempty"`
	LoginTimeout   string `yaml:"login-timeout,omitempty"`
	RequestTimeout string `yaml:"request-timeout,omitempty"`
	TokenStorage   string `yaml:"token-storage,omitempty"`
	NoBrowser      bool   `yaml:"no-browser,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		AppURL:         DefaultAppURL,
		CallbackPort:   DefaultCallbackPort,
		LoginTimeout:   DefaultLoginTimeout.String(),
		RequestTimeout: DefaultRequestTimeout.String(),
		TokenStorage:   TokenStorageFile,
	}
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New("settings path is required")
	}
	settings := DefaultSettings()
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &settings, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	settings.fillDefaults()
	return &settings, nil
}

func Save(path string, settings *Settings) error {
	if settings == nil {
		return errors.New("settings are nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (s *Settings) fillDefaults() {
	defaults := DefaultSettings()
	if s.AppURL == "" {
		s.AppURL = defaults.AppURL
	}
	if s.CallbackPort == 0 {
		s.CallbackPort = defaults.CallbackPort
	}
	if s.LoginTimeout == "" {
		s.LoginTimeout = defaults.LoginTimeout
	}
	if s.RequestTimeout == "" {
		s.RequestTimeout = defaults.RequestTimeout
	}
	if s.TokenStorage == "" {
		s.TokenStorage = defaults.TokenStorage
	}
}

// ApplyEnv overlays the TIMEREPORT_* environment variables on top of s.
func (s *Settings) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("TIMEREPORT_APP_URL")); v != "" {
		s.AppURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMEREPORT_TOKEN_STORAGE")); v != "" {
		s.TokenStorage = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMEREPORT_NO_BROWSER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.NoBrowser = b
		}
	}
}

func (s *Settings) LoginTimeoutDuration() (time.Duration, error) {
	if s.LoginTimeout == "" {
		return DefaultLoginTimeout, nil
	}
	d, err := time.ParseDuration(s.LoginTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid login-timeout %q: %w", s.LoginTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("login-timeout must be positive, got %s", s.LoginTimeout)
	}
	return d, nil
}

func (s *Settings) RequestTimeoutDuration() (time.Duration, error) {
	if s.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request-timeout %q: %w", s.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request-timeout must be positive, got %s", s.RequestTimeout)
	}
	return d, nil
}

func (s *Settings) Validate() error {
	u, err := url.Parse(s.AppURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("app-url must be an absolute http(s) URL, got %q", s.AppURL)
	}
	if s.CallbackPort < 1 || s.CallbackPort > 65535 {
		return fmt.Errorf("callback-port out of range: %d", s.CallbackPort)
	}
	if _, err := s.LoginTimeoutDuration(); err != nil {
		return err
	}
	if _, err := s.RequestTimeoutDuration(); err != nil {
		return err
	}
	switch s.TokenStorage {
	case "", TokenStorageFile, TokenStorageKeychain:
	default:
		return fmt.Errorf("unknown token-storage %q (expected %s or %s)", s.TokenStorage, TokenStorageFile, TokenStorageKeychain)
	}
	return nil
}
