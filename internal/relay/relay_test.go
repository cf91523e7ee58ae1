package relay

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
)

func TestWriteMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Message{Token: "t1", URL: "demo://callback?code=ABC123"}))

	raw := buf.Bytes()
	size := binary.BigEndian.Uint32(raw[:4])
	assert.Equal(t, len(raw)-4, int(size))
	assert.JSONEq(t, `{"token":"t1","url":"demo://callback?code=ABC123"}`, string(raw[4:]))

	msg, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "demo://callback?code=ABC123", msg.URL)
	assert.Equal(t, "t1", msg.Token)
}

func TestReadMessageRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty input", nil},
		{"zero length", []byte{0, 0, 0, 0}},
		{"oversized", []byte{0xff, 0xff, 0xff, 0xff}},
		{"truncated body", []byte{0, 0, 0, 10, '{'}},
		{"not json", append([]byte{0, 0, 0, 3}, "abc"...)},
		{"missing url", append([]byte{0, 0, 0, 2}, "{}"...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMessage(bytes.NewReader(tt.frame))
			assert.Error(t, err)
		})
	}
}

func TestCommandRendering(t *testing.T) {
	cmd := NewCommand("/usr/local/bin/switchbot-key", "127.0.0.1:6000", "tok")

	assert.Equal(t,
		"/usr/local/bin/switchbot-key relay --addr 127.0.0.1:6000 --token tok %u",
		cmd.DesktopExec())
	assert.Equal(t,
		`"/usr/local/bin/switchbot-key" relay --addr 127.0.0.1:6000 --token tok "%1"`,
		cmd.WindowsCommandLine())
	assert.Equal(t,
		"#!/bin/sh\nexec '/usr/local/bin/switchbot-key' 'relay' '--addr' '127.0.0.1:6000' '--token' 'tok' --apple-event\n",
		cmd.ShellScript())
}

func TestNewCommandWithoutToken(t *testing.T) {
	cmd := NewCommand("/bin/x", "127.0.0.1:6000", "")
	assert.Equal(t, []string{"relay", "--addr", "127.0.0.1:6000"}, cmd.Args)
}

func TestDesktopExecRoundTrip(t *testing.T) {
	paths := []string{
		"/usr/bin/switchbot-key",
		"/home/user/My Tools/switchbot-key",
		`/opt/odd "quoted" $dir/back\slash/100%/key`,
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			cmd := NewCommand(p, "127.0.0.1:6000", "tok")
			argv, err := SplitDesktopExec(cmd.DesktopExec())
			require.NoError(t, err)
			assert.Equal(t, cmd.WithURL(DesktopURLField), argv)
		})
	}
}

func TestSplitDesktopExecErrors(t *testing.T) {
	_, err := SplitDesktopExec(`"/usr/bin/x relay`)
	assert.Error(t, err)
}

func TestWindowsCommandLineRoundTrip(t *testing.T) {
	paths := []string{
		`C:\Program Files\switchbot-key\switchbot-key.exe`,
		`C:\tools\key.exe`,
		`C:\weird "dir"\trailing\`,
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			cmd := NewCommand(p, "127.0.0.1:6000", "tok")
			argv := SplitWindowsCommandLine(cmd.WindowsCommandLine())
			assert.Equal(t, cmd.WithURL(WindowsURLField), argv)
		})
	}
}

func TestParseInvocation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    *Invocation
		wantErr bool
	}{
		{
			name: "url argument",
			args: []string{"--addr", "127.0.0.1:6000", "--token", "t", "demo://callback?code=1"},
			want: &Invocation{Addr: "127.0.0.1:6000", Token: "t", URL: "demo://callback?code=1"},
		},
		{
			name: "apple event",
			args: []string{"--addr", "127.0.0.1:6000", "--apple-event"},
			want: &Invocation{Addr: "127.0.0.1:6000", AppleEvent: true},
		},
		{name: "missing addr", args: []string{"demo://x"}, wantErr: true},
		{name: "missing url", args: []string{"--addr", "127.0.0.1:6000"}, wantErr: true},
		{name: "two urls", args: []string{"--addr", "a:1", "demo://a", "demo://b"}, wantErr: true},
		{name: "apple event with url", args: []string{"--addr", "a:1", "--apple-event", "demo://a"}, wantErr: true},
		{name: "unknown flag", args: []string{"--addr", "a:1", "--bogus", "demo://a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInvocation(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSendDeliversOneMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan Message, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		msg, err := ReadMessage(conn)
		if err == nil {
			received <- msg
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inv := &Invocation{Addr: ln.Addr().String(), Token: "abc", URL: "demo://callback?code=ABC123"}
	require.NoError(t, Deliver(ctx, inv))

	select {
	case msg := <-received:
		assert.Equal(t, Message{Token: "abc", URL: "demo://callback?code=ABC123"}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not receive the message")
	}
}

func TestSendFailsWhenNobodyListens(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = Send(context.Background(), addr, Message{URL: "demo://x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.RelayDeliveryError))
}
