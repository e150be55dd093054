package auth

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
)

// CancellationWatcher fires when the operator presses Enter or the input
// stream ends, whichever comes first.
type CancellationWatcher struct {
	in       io.Reader
	cancel   func() bool
	release  func() error
	stopOnce sync.Once
}

// NewCancellationWatcher wraps in. Terminal and pipe inputs become
// interruptible so Stop can unblock a pending read; other readers are read
// as-is and simply outlive the attempt.
func NewCancellationWatcher(in io.Reader) *CancellationWatcher {
	w := &CancellationWatcher{in: in}
	if f, ok := in.(*os.File); ok {
		if cr, err := cancelreader.NewReader(f); err == nil {
			w.in = cr
			w.cancel = cr.Cancel
			w.release = cr.Close
		}
	}
	return w
}

// Watch starts reading and returns a channel closed on Enter or end of
// input. Cancelling ctx stops the watcher without firing.
func (w *CancellationWatcher) Watch(ctx context.Context) <-chan struct{} {
	fired := make(chan struct{})
	go func() {
		defer func() {
			if w.release != nil {
				_ = w.release()
			}
		}()
		_, err := bufio.NewReader(w.in).ReadString('\n')
		if errors.Is(err, cancelreader.ErrCanceled) {
			return
		}
		close(fired)
	}()
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return fired
}

// Stop abandons the pending read. Calling it again, or after the watcher
// fired, does nothing.
func (w *CancellationWatcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
}

// TimeoutGuard fires once after a fixed duration.
type TimeoutGuard struct {
	timer *time.Timer
}

func StartTimeoutGuard(d time.Duration) *TimeoutGuard {
	return &TimeoutGuard{timer: time.NewTimer(d)}
}

func (g *TimeoutGuard) Expired() <-chan time.Time {
	return g.timer.C
}

func (g *TimeoutGuard) Stop() {
	g.timer.Stop()
}
