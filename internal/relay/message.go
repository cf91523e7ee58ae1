package relay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single frame on the wire.
const MaxMessageSize = 64 * 1024

// Message is the single envelope the relay sends to the waiting listener.
type Message struct {
	Token string `json:"token,omitempty"`
	URL   string `json:"url"`
}

// WriteMessage writes msg as one length-prefixed frame: a 4-byte big-endian
// length followed by the JSON encoding.
func WriteMessage(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal relay message: %w", err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("relay message too large: %d bytes", len(body))
	}

	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write relay message: %w", err)
	}
	return nil
}

// ReadMessage reads exactly one frame written by WriteMessage.
func ReadMessage(r io.Reader) (Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, fmt.Errorf("failed to read relay message header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > MaxMessageSize {
		return Message{}, fmt.Errorf("invalid relay message size: %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("failed to read relay message body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse relay message: %w", err)
	}
	if msg.URL == "" {
		return Message{}, fmt.Errorf("relay message has no URL")
	}
	return msg, nil
}
