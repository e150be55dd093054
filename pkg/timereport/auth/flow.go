package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/timereport/timereport-cli/pkg/timereport/credentials"
	"github.com/timereport/timereport-cli/pkg/timereport/output"
)

// State is a step of the login state machine.
type State string

const (
	StateIdle             State = "IDLE"
	StateCheckingExisting State = "CHECKING_EXISTING"
	StateListening        State = "LISTENING"
	StateCommitted        State = "COMMITTED"
	StateDiscarded        State = "DISCARDED"
)

type FlowConfig struct {
	Store credentials.Store
	// AppURL hosts the /cli-auth login page.
	AppURL string
	// ListenAddr is the loopback host:port of the callback server.
	ListenAddr string
	Timeout    time.Duration
	// Input is watched for Enter or end of input to cancel.
	Input io.Reader
	// Browser opens the login URL; nil leaves it to the operator.
	Browser BrowserOpener
	Printer *output.Printer
	Log     *zap.SugaredLogger
}

// Flow runs one login attempt. It is not reusable.
type Flow struct {
	cfg   FlowConfig
	log   *zap.SugaredLogger
	mu    sync.Mutex
	state State
}

func NewFlow(cfg FlowConfig) (*Flow, error) {
	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("callback address is required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("login timeout must be positive")
	}
	if cfg.Input == nil {
		return nil, errors.New("input reader is required")
	}
	if cfg.Printer == nil {
		cfg.Printer = output.NewPrinter(io.Discard)
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Flow{cfg: cfg, log: log.With("component", "login"), state: StateIdle}, nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	prev := f.state
	f.state = s
	f.mu.Unlock()
	f.log.Debugw("Login state changed", "from", prev, "to", s)
}

// Run executes the handshake. Non-success outcomes are returned with a nil
// error; errors are reserved for bind, browser and storage failures. The
// callback port is always released before Run returns.
func (f *Flow) Run(ctx context.Context) (Outcome, error) {
	f.setState(StateCheckingExisting)
	_, loggedIn, err := f.cfg.Store.Read()
	if err != nil {
		f.setState(StateDiscarded)
		return Outcome{}, fmt.Errorf("failed to read stored credential: %w", err)
	}
	if loggedIn {
		f.setState(StateDiscarded)
		return Outcome{Kind: OutcomeAlreadyAuthenticated}, nil
	}

	state, err := NewState()
	if err != nil {
		f.setState(StateDiscarded)
		return Outcome{}, err
	}
	listener, err := StartCallbackListener(f.cfg.ListenAddr, state, f.log)
	if err != nil {
		f.setState(StateDiscarded)
		return Outcome{}, err
	}
	defer func() {
		_ = listener.Close()
	}()
	f.setState(StateListening)

	raceCtx, stopWatchers := context.WithCancel(ctx)
	defer stopWatchers()
	cancelled := NewCancellationWatcher(f.cfg.Input).Watch(raceCtx)
	guard := StartTimeoutGuard(f.cfg.Timeout)
	defer guard.Stop()

	loginURL, err := BuildLoginURL(f.cfg.AppURL, listener.CallbackURL(), state)
	if err != nil {
		f.setState(StateDiscarded)
		return Outcome{}, err
	}
	if f.cfg.Browser == nil {
		f.cfg.Printer.Info("Open this URL to log in:")
		f.cfg.Printer.Plain("%s", loginURL)
		f.cfg.Printer.Info("Press Enter to cancel.")
	} else {
		f.cfg.Printer.Info("Opening browser for login...")
		f.cfg.Printer.Info("If it does not open, visit:")
		f.cfg.Printer.Plain("%s", loginURL)
		f.cfg.Printer.Info("Press Enter to cancel.")
		if err := f.cfg.Browser(loginURL); err != nil {
			f.setState(StateDiscarded)
			return Outcome{}, fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
		}
	}

	var outcome Outcome
	select {
	case outcome = <-listener.Completion():
	case <-cancelled:
		outcome = Outcome{Kind: OutcomeCancelled}
	case <-guard.Expired():
		outcome = Outcome{Kind: OutcomeTimedOut, Timeout: f.cfg.Timeout}
	case <-ctx.Done():
		outcome = Outcome{Kind: OutcomeCancelled}
	}

	// Losers stop before any credential is written.
	stopWatchers()
	guard.Stop()
	if err := listener.Close(); err != nil {
		f.log.Errorw("Failed to shut down callback server", "error", err)
	}
	f.log.Debugw("Login attempt finished", "outcome", outcome.Kind.String())

	if outcome.Kind != OutcomeSuccess {
		f.setState(StateDiscarded)
		return outcome, nil
	}
	cred := credentials.Credential{ServerURL: outcome.ServerURL, Token: outcome.Token}
	if err := f.cfg.Store.Write(cred); err != nil {
		f.setState(StateDiscarded)
		return Outcome{}, fmt.Errorf("failed to save credential: %w", err)
	}
	f.setState(StateCommitted)
	return outcome, nil
}
