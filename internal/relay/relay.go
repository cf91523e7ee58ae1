// Package relay is the short-lived side of the redirect rendezvous: the
// program the OS launches for the custom scheme, which forwards the captured
// URL to the waiting listener as a single framed message and exits.
package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/pflag"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

const (
	flagAddr       = "addr"
	flagToken      = "token"
	flagAppleEvent = "apple-event"

	// DialTimeout bounds the single connection attempt. There is no retry.
	DialTimeout = 5 * time.Second
)

// Invocation is a parsed relay command line.
type Invocation struct {
	Addr       string
	Token      string
	AppleEvent bool
	URL        string
}

// ParseInvocation parses the arguments that follow the relay subcommand.
func ParseInvocation(args []string) (*Invocation, error) {
	inv := &Invocation{}

	fs := pflag.NewFlagSet(SubcommandName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&inv.Addr, flagAddr, "", "listener address")
	fs.StringVar(&inv.Token, flagToken, "", "session token")
	fs.BoolVar(&inv.AppleEvent, flagAppleEvent, false, "read the URL from a GetURL Apple event")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("invalid relay arguments: %w", err)
	}

	if inv.Addr == "" {
		return nil, fmt.Errorf("relay requires --%s", flagAddr)
	}

	rest := fs.Args()
	switch {
	case inv.AppleEvent && len(rest) == 0:
	case !inv.AppleEvent && len(rest) == 1:
		inv.URL = rest[0]
	default:
		return nil, fmt.Errorf("relay expects exactly one URL argument, got %d", len(rest))
	}
	return inv, nil
}

// Deliver obtains the URL (from the argument or the Apple event) and sends it.
func Deliver(ctx context.Context, inv *Invocation) error {
	rawURL := inv.URL
	if inv.AppleEvent {
		u, err := WaitAppleEventURL()
		if err != nil {
			return apperrors.NewRelayDeliveryError(err, "no URL received from Apple event")
		}
		rawURL = u
	}
	return Send(ctx, inv.Addr, Message{Token: inv.Token, URL: rawURL})
}

// Send opens one connection to addr, writes msg and closes the connection.
func Send(ctx context.Context, addr string, msg Message) error {
	dialer := net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return apperrors.NewRelayDeliveryError(err, "failed to connect to listener")
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(DialTimeout))
	}

	if err := WriteMessage(conn, msg); err != nil {
		return apperrors.NewRelayDeliveryError(err, "failed to send callback URL")
	}
	return nil
}
