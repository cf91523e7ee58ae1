// Package callback implements the waiting side of the redirect rendezvous:
// a loopback TCP listener that accepts exactly one relay message and then
// shuts itself down.
package callback

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/relay"
)

// DefaultReadTimeout bounds how long one peer may take to send its message.
const DefaultReadTimeout = 10 * time.Second

var (
	// ErrWaitCancelled matches errors returned when the wait was cancelled.
	ErrWaitCancelled = apperrors.Kind(apperrors.WaitCancelled)
	// ErrWaitTimeout matches errors returned when the wait deadline expired.
	ErrWaitTimeout = apperrors.Kind(apperrors.TimeoutError)
	// ErrListenerClosed is returned by AcceptOne once the listener is done.
	ErrListenerClosed = errors.New("callback listener closed")
)

// Option configures a Listener.
type Option func(*Listener)

// WithToken requires every message to carry token.
func WithToken(token string) Option {
	return func(l *Listener) { l.token = token }
}

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) { l.readTimeout = d }
}

// Listener accepts one callback message on a loopback address.
type Listener struct {
	ln          net.Listener
	token       string
	readTimeout time.Duration

	mu       sync.Mutex
	accepted bool
	closed   bool
}

// Listen binds addr, which must name a loopback host.
func Listen(addr string, opts ...Option) (*Listener, error) {
	if err := checkLoopback(addr); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &Listener{ln: ln, readTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// AcceptOne blocks until a peer delivers one valid message and returns its
// URL. The listener is closed before AcceptOne returns, whatever the outcome,
// so later connection attempts are refused. It may be called only once.
func (l *Listener) AcceptOne(ctx context.Context) (string, error) {
	l.mu.Lock()
	if l.accepted || l.closed {
		l.mu.Unlock()
		return "", ErrListenerClosed
	}
	l.accepted = true
	l.mu.Unlock()

	defer func() { _ = l.Close() }()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", waitError(ctxErr)
			}
			return "", fmt.Errorf("failed to accept callback connection: %w", err)
		}

		rawURL, err := l.receive(ctx, conn)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", waitError(ctxErr)
			}
			log.Printf("Ignoring callback connection from %s: %v", conn.RemoteAddr(), err)
			continue
		}
		return rawURL, nil
	}
}

func (l *Listener) receive(ctx context.Context, conn net.Conn) (string, error) {
	defer func() { _ = conn.Close() }()

	// A silent peer must not hold the wait past cancellation.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if l.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	}

	msg, err := relay.ReadMessage(conn)
	if err != nil {
		return "", err
	}
	if l.token != "" && subtle.ConstantTimeCompare([]byte(msg.Token), []byte(l.token)) != 1 {
		return "", errors.New("session token mismatch")
	}
	return msg.URL, nil
}

// Close releases the socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.ln.Close()
}

func waitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("no callback received before the deadline").WithCause(err)
	}
	return apperrors.NewWaitCancelledError(err)
}

func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return apperrors.NewValidationError("invalid listen address").WithDetails(addr)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return apperrors.NewValidationError("listen address must be loopback").WithDetails(addr)
	}
	return nil
}
