package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallbackPath is where the remote login page redirects the browser.
const CallbackPath = "/callback"

const (
	queryContextKey  = "callbackQuery"
	shutdownTimeout  = 2 * time.Second
	readHeaderLimit  = 10 * time.Second
	redactedQueryVal = "REDACTED"
)

// Query parameters the login page sends back.
const (
	paramToken     = "token"
	paramServerURL = "convexUrl"
	paramState     = "state"
	paramEmail     = "email"
)

// PortInUseError reports that the callback address could not be bound,
// usually because another login is already waiting on it.
type PortInUseError struct {
	Addr string
	Err  error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("could not start callback server on %s: %v", e.Addr, e.Err)
}

func (e *PortInUseError) Unwrap() error {
	return e.Err
}

// CallbackListener is a single-use HTTP endpoint on a loopback address. It
// resolves at most one Outcome; every later request gets a generic page.
type CallbackListener struct {
	log      *zap.SugaredLogger
	state    string
	ln       net.Listener
	server   *http.Server
	results  chan Outcome
	mu       sync.Mutex
	resolved bool
	once     sync.Once
	closeErr error
}

// StartCallbackListener binds addr, which must be a loopback host, and
// serves the callback route. expectedState is the anti-forgery value the
// request has to carry.
func StartCallbackListener(addr, expectedState string, log *zap.SugaredLogger) (*CallbackListener, error) {
	if expectedState == "" {
		return nil, errors.New("expected state is required")
	}
	if err := requireLoopback(addr); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &PortInUseError{Addr: addr, Err: err}
	}

	l := &CallbackListener{
		log:     log.With("component", "callback-listener"),
		state:   expectedState,
		ln:      ln,
		results: make(chan Outcome, 1),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	// Only the exact callback path may resolve the attempt.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.SetHTMLTemplate(pageTemplates)
	engine.Use(
		redactQuery(),
		ginzap.Ginzap(log.Desugar(), time.RFC3339, true),
		ginzap.RecoveryWithZap(log.Desugar(), true),
	)
	engine.GET(CallbackPath, l.handleCallback)

	l.server = &http.Server{Handler: engine, ReadHeaderTimeout: readHeaderLimit}
	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Errorw("Callback server stopped unexpectedly", "error", err)
		}
	}()
	l.log.Debugw("Callback listener started", "addr", ln.Addr().String())
	return l, nil
}

func requireLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid callback address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("callback address %q is not a loopback address", addr)
	}
	return nil
}

func (l *CallbackListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *CallbackListener) CallbackURL() string {
	return "http://" + l.Addr() + CallbackPath
}

// Completion delivers the one Outcome produced by a callback request.
func (l *CallbackListener) Completion() <-chan Outcome {
	return l.results
}

// Close finalizes the attempt and releases the port. It is safe to call more
// than once.
func (l *CallbackListener) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.resolved = true
		l.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := l.server.Shutdown(ctx); err != nil {
			l.closeErr = l.server.Close()
		}
		// Serve may not have started yet; make sure the socket is gone now.
		_ = l.ln.Close()
		l.log.Debugw("Callback listener closed", "addr", l.Addr())
	})
	return l.closeErr
}

func (l *CallbackListener) handleCallback(c *gin.Context) {
	query, _ := c.MustGet(queryContextKey).(url.Values)

	l.mu.Lock()
	if l.resolved {
		l.mu.Unlock()
		l.log.Debugw("Ignoring callback for a finished login attempt")
		c.HTML(http.StatusGone, callbackPage, pageAlreadyDone)
		return
	}
	l.resolved = true
	l.mu.Unlock()

	outcome, status, page := l.evaluate(query)
	l.log.Debugw("Callback received", "outcome", outcome.Kind.String(), "status", status)

	c.HTML(status, callbackPage, page)
	c.Writer.Flush()
	l.results <- outcome
}

// evaluate applies the checks in order and stops at the first failure.
func (l *CallbackListener) evaluate(query url.Values) (Outcome, int, pageData) {
	state := query.Get(paramState)
	if subtle.ConstantTimeCompare([]byte(state), []byte(l.state)) != 1 {
		return Outcome{Kind: OutcomeRejected, Reason: ReasonStateMismatch}, http.StatusForbidden, pageStateMismatch
	}
	token := query.Get(paramToken)
	serverURL := query.Get(paramServerURL)
	if token == "" || serverURL == "" {
		return Outcome{Kind: OutcomeRejected, Reason: ReasonMissingFields}, http.StatusBadRequest, pageMissingFields
	}
	if !IsTrustedServerURL(serverURL) {
		l.log.Warnw("Rejected callback with untrusted server URL", "serverURL", serverURL)
		return Outcome{Kind: OutcomeRejected, Reason: ReasonUntrustedServer}, http.StatusBadRequest, pageUntrusted
	}
	email := query.Get(paramEmail)
	page := pageLoggedIn
	page.Email = email
	return Outcome{Kind: OutcomeSuccess, Token: token, ServerURL: serverURL, Email: email}, http.StatusOK, page
}

// redactQuery stashes the parsed query for the handler and masks secrets
// before the request logger sees the raw URL.
func redactQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		c.Set(queryContextKey, query)

		masked := url.Values{}
		for key, values := range query {
			switch key {
			case paramToken, paramState, paramEmail:
				masked.Set(key, redactedQueryVal)
			default:
				masked[key] = values
			}
		}
		c.Request.URL.RawQuery = masked.Encode()
		c.Next()
	}
}
