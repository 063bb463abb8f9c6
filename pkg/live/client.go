package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client speaks the live protocol from the viewer side. It is used by
// headless viewers and tests; browsers implement the same frames in JS.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to a live endpoint such as ws://host/live/<session>
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes a client frame
func (c *Client) Send(msg ClientMessage) error {
	data, err := EncodeClient(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw writes an already encoded frame without validation
func (c *Client) SendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Init reports the surface as ready with the given pixel size
func (c *Client) Init(width, height float64) error {
	return c.Send(ClientMessage{Type: MsgInit, Width: width, Height: height})
}

// OpenDocument asks the server to load and show a document's mindmap
func (c *Client) OpenDocument(pdfID int64) error {
	return c.Send(ClientMessage{Type: MsgOpen, PDFID: pdfID})
}

// OpenMindmap sends an inline mindmap; nil empties the view
func (c *Client) OpenMindmap(raw json.RawMessage) error {
	return c.Send(ClientMessage{Type: MsgOpen, Mindmap: raw})
}

// CloseView discards the server-side view state
func (c *Client) CloseView() error {
	return c.Send(ClientMessage{Type: MsgClose})
}

// Ping asks for a pong frame
func (c *Client) Ping() error {
	return c.Send(ClientMessage{Type: MsgPing})
}

// Next reads the next server frame, waiting at most timeout
func (c *Client) Next(timeout time.Duration) (ServerMessage, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return ServerMessage{}, err
	}
	return DecodeServer(data)
}

// Expect skips frames until one of type t arrives
func (c *Client) Expect(t MessageType, timeout time.Duration) (ServerMessage, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ServerMessage{}, fmt.Errorf("timed out waiting for %s frame", t)
		}
		msg, err := c.Next(remaining)
		if err != nil {
			return ServerMessage{}, err
		}
		if msg.Type == t {
			return msg, nil
		}
	}
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
