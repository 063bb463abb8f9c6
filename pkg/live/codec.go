package live

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize bounds a single inbound frame
const MaxMessageSize = 1 << 20

var (
	ErrEmptyFrame    = errors.New("live: empty frame")
	ErrUnknownType   = errors.New("live: unknown message type")
	ErrInvalidFields = errors.New("live: invalid message fields")
)

// EncodeServer serialises a server frame
func EncodeServer(msg ServerMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", msg.Type, err)
	}
	return data, nil
}

// DecodeServer parses a server frame
func DecodeServer(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if len(bytes.TrimSpace(data)) == 0 {
		return msg, ErrEmptyFrame
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode server frame: %w", err)
	}
	return msg, nil
}

// EncodeClient serialises a client frame
func EncodeClient(msg ClientMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// DecodeClient parses and validates a client frame
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if len(bytes.TrimSpace(data)) == 0 {
		return msg, ErrEmptyFrame
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode client frame: %w", err)
	}
	return msg, msg.Validate()
}

// Validate checks the fields required by the frame type
func (m ClientMessage) Validate() error {
	switch m.Type {
	case MsgInit:
		if m.Width <= 0 || m.Height <= 0 {
			return fmt.Errorf("%w: init needs a positive width and height", ErrInvalidFields)
		}
	case MsgOpen:
		if m.PDFID < 0 {
			return fmt.Errorf("%w: negative pdf_id", ErrInvalidFields)
		}
		if m.PDFID > 0 && hasMindmap(m.Mindmap) {
			return fmt.Errorf("%w: open takes pdf_id or mindmap, not both", ErrInvalidFields)
		}
	case MsgClose, MsgPing:
	default:
		return fmt.Errorf("%w %q", ErrUnknownType, m.Type)
	}
	return nil
}

func hasMindmap(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
