// Package webauth drives one browser login whose redirect comes back
// through a temporarily registered URI scheme.
//
// A Flow binds the callback listener, registers the relay command for the
// scheme, opens the browser and waits for the relayed URL. The registration
// is removed on every exit path, including cancellation.
package webauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"

	"github.com/naotama2002/switchbot-key/internal/callback"
	"github.com/naotama2002/switchbot-key/internal/filelock"
	"github.com/naotama2002/switchbot-key/internal/relay"
	"github.com/naotama2002/switchbot-key/internal/urlhandler"
)

// State is a step of the flow.
type State int

const (
	Idle State = iota
	Registered
	AwaitingCallback
	Completed
	Cancelled
	Failed
	CleanedUp
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Registered:
		return "Registered"
	case AwaitingCallback:
		return "AwaitingCallback"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Failed:
		return "Failed"
	case CleanedUp:
		return "CleanedUp"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrFlowUsed is returned when Run is called on a flow that already ran.
var ErrFlowUsed = errors.New("authentication flow already used")

// Options configure a Flow.
type Options struct {
	Scheme string
	// Addr is the loopback address the relay connects to.
	Addr string
	// Timeout bounds the wait for the redirect; zero waits until ctx ends.
	Timeout   time.Duration
	Registrar urlhandler.Registrar
	// Executable is the binary the OS launches; defaults to os.Executable.
	Executable string
	// OpenURL opens the browser; defaults to browser.OpenURL.
	OpenURL func(url string) error
	// LockPath is the base path of the per-user lock; empty disables it.
	LockPath string
}

// Flow is a single-use redirect capture.
type Flow struct {
	opts Options

	mu      sync.Mutex
	started bool
	state   State
	outcome State
}

func New(opts Options) *Flow {
	if opts.OpenURL == nil {
		opts.OpenURL = browser.OpenURL
	}
	return &Flow{opts: opts}
}

// State returns the current state; CleanedUp once Run has returned.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Outcome returns the last state reached before cleanup: Completed,
// Cancelled or Failed. It is Idle while the flow has not finished.
func (f *Flow) Outcome() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

func (f *Flow) transition(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s == Completed || s == Cancelled || s == Failed {
		f.outcome = s
	}
	f.state = s
}

// Run performs the capture and returns the redirect URL as delivered by
// the relay. authorizeURL is the identity provider page to open.
func (f *Flow) Run(ctx context.Context, authorizeURL string) (payload string, err error) {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return "", ErrFlowUsed
	}
	f.started = true
	f.mu.Unlock()

	if f.opts.Registrar == nil {
		f.fail()
		return "", errors.New("no scheme registrar configured")
	}

	if f.opts.LockPath != "" {
		lock := filelock.New(f.opts.LockPath)
		if err := lock.Lock(0); err != nil {
			f.fail()
			return "", fmt.Errorf("another authentication is already in progress (lock %s): %w", lock.Path(), err)
		}
		defer func() { _ = lock.Unlock() }()
	}

	exe, err := f.executable()
	if err != nil {
		f.fail()
		return "", err
	}

	// Listen before registering so an early relay cannot find nobody home.
	token := uuid.NewString()
	l, err := callback.Listen(f.opts.Addr, callback.WithToken(token))
	if err != nil {
		f.fail()
		return "", err
	}
	defer func() { _ = l.Close() }()

	cmd := relay.NewCommand(exe, l.Addr().String(), token)
	log.Printf("Registering %s:// URL handler", f.opts.Scheme)
	h, err := f.opts.Registrar.Register(f.opts.Scheme, cmd)
	if err != nil {
		// Register rolls back its own partial work.
		f.fail()
		return "", fmt.Errorf("failed to register URL handler: %w", err)
	}
	f.transition(Registered)

	defer func() {
		if cleanupErr := f.opts.Registrar.Cleanup(h); cleanupErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove URL handler: %w", cleanupErr))
		}
		f.transition(CleanedUp)
	}()

	log.Println("Please authorize access in your browser at:", authorizeURL)
	if openErr := f.opts.OpenURL(authorizeURL); openErr != nil {
		log.Printf("Failed to open browser automatically: %v", openErr)
		log.Println("Please open the URL manually in your browser.")
	}
	f.transition(AwaitingCallback)

	waitCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	log.Println("Waiting for the auth response...")
	payload, err = l.AcceptOne(waitCtx)
	if err != nil {
		if errors.Is(err, callback.ErrWaitCancelled) || errors.Is(err, callback.ErrWaitTimeout) {
			f.transition(Cancelled)
		} else {
			f.transition(Failed)
		}
		return "", err
	}

	f.transition(Completed)
	return payload, nil
}

// fail records a failure before anything was registered.
func (f *Flow) fail() {
	f.transition(Failed)
	f.transition(CleanedUp)
}

func (f *Flow) executable() (string, error) {
	if f.opts.Executable != "" {
		return f.opts.Executable, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate own executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
