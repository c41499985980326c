package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitInterrupt is the process exit code for an interrupted run.
const ExitInterrupt = 3

// abortWindow is how long after a Ctrl+C a second press aborts
// immediately instead of starting a fresh wind-down.
const abortWindow = 2 * time.Second

const (
	noticeMessage = "\nInterrupted: finishing the current file. Press Ctrl+C again within 2s to abort."
	abortMessage  = "\nAborted."
)

// Handler manages graceful interrupt handling with double Ctrl+C
// detection. The first signal cancels the run context so in-flight
// files can finish their transition to a safe state; a second signal
// within the window exits on the spot.
type Handler struct {
	mu        sync.Mutex
	firstAt   time.Time
	signalled bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}

	exit   func(int)
	now    func() time.Time
	stderr io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr must be safe for concurrent writes; os.Stderr is safe at
	// the OS level.
	Stderr io.Writer
}

// NewHandler creates a handler that listens for SIGINT/SIGTERM.
// Returns the handler and a context that is cancelled on the first
// interrupt.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return NewHandlerWithOptions(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		cancel: cancel,
		done:   make(chan struct{}),
		exit:   opts.ExitFunc,
		now:    opts.NowFunc,
		stderr: opts.Stderr,
	}
	if h.exit == nil {
		h.exit = os.Exit
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}
	return h, ctx
}

// listen handles incoming signals. A signal arriving after the abort
// window re-arms the timer rather than being dropped, so a stuck
// wind-down can still be killed with two more presses.
func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}

			h.mu.Lock()
			if h.stopped {
				h.mu.Unlock()
				return
			}
			now := h.now()

			if !h.signalled {
				h.signalled = true
				h.firstAt = now
				h.cancel()
				h.mu.Unlock()
				fmt.Fprintln(h.stderr, noticeMessage)
				continue
			}

			if now.Sub(h.firstAt) <= abortWindow {
				h.mu.Unlock()
				fmt.Fprintln(h.stderr, abortMessage)
				h.exit(ExitInterrupt)
				return // in case exit does not actually exit (tests)
			}

			h.firstAt = now
			h.mu.Unlock()
			fmt.Fprintln(h.stderr, noticeMessage)
		}
	}
}

// WasInterrupted returns true if at least one interrupt was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.signalled
}

// Stop cleans up the handler. Should be called when done.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
}
