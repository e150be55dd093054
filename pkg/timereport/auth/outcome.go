package auth

import (
	"fmt"
	"time"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeCancelled
	OutcomeTimedOut
	OutcomeRejected
	// OutcomeAlreadyAuthenticated short-circuits the flow before anything
	// is bound; it is not a failure.
	OutcomeAlreadyAuthenticated
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed-out"
	case OutcomeRejected:
		return "rejected"
	case OutcomeAlreadyAuthenticated:
		return "already-authenticated"
	default:
		return "unknown"
	}
}

// Rejection reasons reported by the callback listener.
const (
	ReasonStateMismatch   = "anti-forgery token mismatch"
	ReasonMissingFields   = "missing credential fields"
	ReasonUntrustedServer = "untrusted server URL"
)

// Outcome is the single result of one login attempt.
type Outcome struct {
	Kind      OutcomeKind
	Token     string
	ServerURL string
	Email     string
	Reason    string
	Timeout   time.Duration
}

// Message is the line shown to the operator for this outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSuccess:
		if o.Email != "" {
			return fmt.Sprintf("Logged in as %s.", o.Email)
		}
		return "Logged in."
	case OutcomeCancelled:
		return "Login cancelled."
	case OutcomeTimedOut:
		return fmt.Sprintf("Login timed out (%s). Try again.", humanDuration(o.Timeout))
	case OutcomeRejected:
		return fmt.Sprintf("Login rejected: %s. Try again.", o.Reason)
	case OutcomeAlreadyAuthenticated:
		return "Already logged in. Run `timereport logout` first to switch accounts."
	default:
		return "Login did not complete."
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "no limit"
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
