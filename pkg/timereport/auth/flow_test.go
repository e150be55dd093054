package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/timereport/timereport-cli/pkg/timereport/credentials"
	"github.com/timereport/timereport-cli/pkg/timereport/output"
)

const testAppURL = "https://timereport.app"

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// blockingInput never delivers a line until the test ends.
func blockingInput(t *testing.T) io.Reader {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() {
		_ = w.Close()
	})
	return r
}

// completingBrowser plays the remote login page: it follows the login URL's
// callback with the given parameters. A nil mutate sends a valid callback.
func completingBrowser(t *testing.T, mutate func(q url.Values)) BrowserOpener {
	return func(loginURL string) error {
		u, err := url.Parse(loginURL)
		if err != nil {
			return err
		}
		callback := u.Query().Get("callback")
		q := url.Values{}
		q.Set("state", u.Query().Get("state"))
		q.Set("token", testToken)
		q.Set("convexUrl", testServerURL)
		q.Set("email", testEmail)
		if mutate != nil {
			mutate(q)
		}
		resp, err := http.Get(callback + "?" + q.Encode())
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	}
}

type flowFixture struct {
	store *credentials.FileStore
	out   *bytes.Buffer
	cfg   FlowConfig
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	store := &credentials.FileStore{Path: filepath.Join(t.TempDir(), "config.json")}
	out := &bytes.Buffer{}
	return &flowFixture{
		store: store,
		out:   out,
		cfg: FlowConfig{
			Store:      store,
			AppURL:     testAppURL,
			ListenAddr: freeLoopbackAddr(t),
			Timeout:    5 * time.Second,
			Input:      blockingInput(t),
			Printer:    output.NewPrinter(out),
			Log:        zaptest.NewLogger(t).Sugar(),
		},
	}
}

func (f *flowFixture) run(t *testing.T) (*Flow, Outcome, error) {
	t.Helper()
	flow, err := NewFlow(f.cfg)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, flow.State())
	outcome, err := flow.Run(context.Background())
	return flow, outcome, err
}

func assertPortReleased(t *testing.T, addr string) {
	t.Helper()
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "callback port should be free after the attempt")
	_ = ln.Close()
}

func assertNoCredential(t *testing.T, store credentials.Store) {
	t.Helper()
	_, ok, err := store.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlowCommitsCredential(t *testing.T) {
	f := newFlowFixture(t)
	f.cfg.Browser = completingBrowser(t, nil)

	flow, outcome, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, testEmail, outcome.Email)
	assert.Equal(t, "Logged in as dev@example.com.", outcome.Message())
	assert.Equal(t, StateCommitted, flow.State())

	cred, ok, err := f.store.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, credentials.Credential{ServerURL: testServerURL, Token: testToken}, cred)
	assertPortReleased(t, f.cfg.ListenAddr)
}

func TestFlowPrintsLoginURL(t *testing.T) {
	f := newFlowFixture(t)
	var opened string
	complete := completingBrowser(t, nil)
	f.cfg.Browser = func(loginURL string) error {
		opened = loginURL
		return complete(loginURL)
	}

	_, _, err := f.run(t)
	require.NoError(t, err)

	u, err := url.Parse(opened)
	require.NoError(t, err)
	assert.Equal(t, "timereport.app", u.Host)
	assert.Equal(t, "/cli-auth", u.Path)
	assert.Equal(t, "http://"+f.cfg.ListenAddr+"/callback", u.Query().Get("callback"))
	assert.Len(t, u.Query().Get("state"), 64)

	printed := f.out.String()
	assert.Contains(t, printed, "Opening browser for login...")
	assert.Contains(t, printed, opened)
	assert.Contains(t, printed, "Press Enter to cancel.")
}

func TestFlowRejectedCallbacks(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(q url.Values)
		wantReason string
	}{
		{
			name:       "forged state",
			mutate:     func(q url.Values) { q.Set("state", "forged") },
			wantReason: ReasonStateMismatch,
		},
		{
			name:       "missing token",
			mutate:     func(q url.Values) { q.Del("token") },
			wantReason: ReasonMissingFields,
		},
		{
			name:       "untrusted server",
			mutate:     func(q url.Values) { q.Set("convexUrl", "https://evil.example.com") },
			wantReason: ReasonUntrustedServer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlowFixture(t)
			f.cfg.Browser = completingBrowser(t, tt.mutate)

			flow, outcome, err := f.run(t)
			require.NoError(t, err)
			assert.Equal(t, OutcomeRejected, outcome.Kind)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			assert.Equal(t, StateDiscarded, flow.State())
			assertNoCredential(t, f.store)
			assertPortReleased(t, f.cfg.ListenAddr)
		})
	}
}

func TestFlowSecondCallbackDoesNotOverwrite(t *testing.T) {
	f := newFlowFixture(t)
	complete := completingBrowser(t, nil)
	var secondStatus int
	f.cfg.Browser = func(loginURL string) error {
		if err := complete(loginURL); err != nil {
			return err
		}
		u, _ := url.Parse(loginURL)
		q := url.Values{}
		q.Set("state", u.Query().Get("state"))
		q.Set("token", "attacker-token")
		q.Set("convexUrl", "https://attacker-1.convex.cloud")
		resp, err := http.Get(u.Query().Get("callback") + "?" + q.Encode())
		if err != nil {
			return err
		}
		secondStatus = resp.StatusCode
		return resp.Body.Close()
	}

	_, outcome, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, secondStatus)
	assert.Equal(t, testToken, outcome.Token)

	cred, ok, err := f.store.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testToken, cred.Token)
}

func TestFlowAlreadyLoggedIn(t *testing.T) {
	f := newFlowFixture(t)
	existing := credentials.Credential{ServerURL: testServerURL, Token: "existing"}
	require.NoError(t, f.store.Write(existing))

	// an occupied port proves no listener is started
	occupied, err := net.Listen("tcp", f.cfg.ListenAddr)
	require.NoError(t, err)
	defer func() {
		_ = occupied.Close()
	}()
	f.cfg.Browser = func(string) error {
		t.Fatal("browser must not be opened")
		return nil
	}

	flow, outcome, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAuthenticated, outcome.Kind)
	assert.Equal(t, "Already logged in. Run `timereport logout` first to switch accounts.", outcome.Message())
	assert.Equal(t, StateDiscarded, flow.State())
	assert.Empty(t, f.out.String())

	cred, _, err := f.store.Read()
	require.NoError(t, err)
	assert.Equal(t, existing, cred)
}

func TestFlowTimesOut(t *testing.T) {
	f := newFlowFixture(t)
	f.cfg.Timeout = 50 * time.Millisecond
	f.cfg.Browser = func(string) error { return nil }

	flow, outcome, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Equal(t, StateDiscarded, flow.State())
	assertNoCredential(t, f.store)
	assertPortReleased(t, f.cfg.ListenAddr)
}

func TestFlowCancelledByInput(t *testing.T) {
	for name, input := range map[string]string{"enter": "\n", "end of input": ""} {
		t.Run(name, func(t *testing.T) {
			f := newFlowFixture(t)
			f.cfg.Input = strings.NewReader(input)

			flow, outcome, err := f.run(t)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCancelled, outcome.Kind)
			assert.Equal(t, "Login cancelled.", outcome.Message())
			assert.Equal(t, StateDiscarded, flow.State())
			assertNoCredential(t, f.store)
			assertPortReleased(t, f.cfg.ListenAddr)
		})
	}
}

func TestFlowWithoutBrowserOnlyPrintsURL(t *testing.T) {
	f := newFlowFixture(t)
	f.cfg.Input = strings.NewReader("\n")

	_, outcome, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome.Kind)

	printed := f.out.String()
	assert.NotContains(t, printed, "Opening browser")
	assert.NotContains(t, printed, "If it does not open")
	assert.Contains(t, printed, "Open this URL to log in:")
	assert.Contains(t, printed, testAppURL+"/cli-auth?")
	assert.Contains(t, printed, "Press Enter to cancel.")
}

func TestFlowContextCancelled(t *testing.T) {
	f := newFlowFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.cfg.Browser = func(string) error {
		cancel()
		return nil
	}
	flow, err := NewFlow(f.cfg)
	require.NoError(t, err)

	outcome, err := flow.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome.Kind)
	assertNoCredential(t, f.store)
	assertPortReleased(t, f.cfg.ListenAddr)
}

func TestFlowPortInUse(t *testing.T) {
	f := newFlowFixture(t)
	occupied, err := net.Listen("tcp", f.cfg.ListenAddr)
	require.NoError(t, err)
	defer func() {
		_ = occupied.Close()
	}()

	flow, _, err := f.run(t)
	require.Error(t, err)
	var portErr *PortInUseError
	assert.True(t, errors.As(err, &portErr))
	assert.Equal(t, StateDiscarded, flow.State())
	assertNoCredential(t, f.store)
}

func TestFlowBrowserLaunchFailure(t *testing.T) {
	f := newFlowFixture(t)
	f.cfg.Browser = func(string) error { return errors.New("no display") }

	flow, _, err := f.run(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBrowserLaunch)
	assert.Contains(t, err.Error(), "no display")
	assert.Equal(t, StateDiscarded, flow.State())
	assertPortReleased(t, f.cfg.ListenAddr)
}

func TestFlowStoreReadError(t *testing.T) {
	f := newFlowFixture(t)
	require.NoError(t, os.WriteFile(f.store.Path, []byte("{not json"), 0o600))

	flow, _, err := f.run(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read stored credential")
	assert.Equal(t, StateDiscarded, flow.State())
}

func TestNewFlowValidation(t *testing.T) {
	base := newFlowFixture(t).cfg
	tests := []struct {
		name    string
		mutate  func(cfg *FlowConfig)
		wantErr string
	}{
		{name: "store", mutate: func(cfg *FlowConfig) { cfg.Store = nil }, wantErr: "credential store is required"},
		{name: "address", mutate: func(cfg *FlowConfig) { cfg.ListenAddr = "" }, wantErr: "callback address is required"},
		{name: "timeout", mutate: func(cfg *FlowConfig) { cfg.Timeout = 0 }, wantErr: "login timeout must be positive"},
		{name: "input", mutate: func(cfg *FlowConfig) { cfg.Input = nil }, wantErr: "input reader is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := NewFlow(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
