package live

import (
	"encoding/json"

	"github.com/recera/perplexia/pkg/components/graphviewer"
	"github.com/recera/perplexia/pkg/mindmap"
)

// MessageType names a live protocol frame
type MessageType string

const (
	// Client to server
	MsgInit  MessageType = "init"
	MsgOpen  MessageType = "open"
	MsgClose MessageType = "close"
	MsgPing  MessageType = "ping"

	// Server to client
	MsgHello MessageType = "hello"
	MsgGraph MessageType = "graph"
	MsgFit   MessageType = "fit"
	MsgPong  MessageType = "pong"
	MsgError MessageType = "error"
)

// ClientMessage is a frame sent by the browser
type ClientMessage struct {
	Type MessageType `json:"type"`

	// init: surface size in pixels
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// open: either a document to load or an inline mindmap
	PDFID   int64           `json:"pdf_id,omitempty"`
	Mindmap json.RawMessage `json:"mindmap,omitempty"`
}

// ServerMessage is a frame sent to the browser
type ServerMessage struct {
	Type    MessageType `json:"type"`
	Session string      `json:"session,omitempty"`

	// graph
	Graph   *mindmap.Graph `json:"graph,omitempty"`
	Version uint64         `json:"version,omitempty"`

	// fit
	Viewport *graphviewer.Viewport `json:"viewport,omitempty"`
	Padding  float64               `json:"padding,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}
