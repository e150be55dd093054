package auth

import (
	"errors"

	"github.com/cli/browser"
)

// ErrBrowserLaunch marks a failure to hand the login URL to the system browser.
var ErrBrowserLaunch = errors.New("could not open browser")

// BrowserOpener launches url in a browser.
type BrowserOpener func(url string) error

func OpenSystemBrowser(url string) error {
	return browser.OpenURL(url)
}
