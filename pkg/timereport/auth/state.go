package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// stateBytes gives 256 bits of entropy per login attempt.
const stateBytes = 32

// trustedServerURL is the only backend shape the callback may hand us.
var trustedServerURL = regexp.MustCompile(`^https://[a-z0-9-]+\.convex\.cloud$`)

// NewState returns a fresh hex-encoded anti-forgery value.
func NewState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate anti-forgery token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func IsTrustedServerURL(raw string) bool {
	return trustedServerURL.MatchString(raw)
}

// BuildLoginURL points the browser at the remote login page, telling it where
// to send the result and which state value to echo back.
func BuildLoginURL(appURL, callbackURL, state string) (string, error) {
	base, err := url.Parse(appURL)
	if err != nil {
		return "", fmt.Errorf("invalid app URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid app URL: %q", appURL)
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/cli-auth"
	query := url.Values{}
	query.Set("callback", callbackURL)
	query.Set("state", state)
	base.RawQuery = query.Encode()
	return base.String(), nil
}
