// Package mindmap holds the raw mindmap model produced by the Perplexia back end
// and the projection that turns it into a styled graph ready for rendering.
package mindmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// NodeType is the semantic role of a node in a mindmap
type NodeType string

const (
	NodeCentral  NodeType = "central"
	NodeTopic    NodeType = "topic"
	NodeSubtopic NodeType = "subtopic"
	NodeDefault  NodeType = "default"
)

// ParseNodeType maps free-form input onto a known node type.
// Anything unrecognised is NodeDefault.
func ParseNodeType(s string) NodeType {
	switch NodeType(strings.ToLower(strings.TrimSpace(s))) {
	case NodeCentral:
		return NodeCentral
	case NodeTopic:
		return NodeTopic
	case NodeSubtopic:
		return NodeSubtopic
	default:
		return NodeDefault
	}
}

// UnmarshalJSON normalises the node type while decoding
func (t *NodeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null or a non-string value
		*t = NodeDefault
		return nil
	}
	*t = ParseNodeType(s)
	return nil
}

// LinkType is the relationship a link expresses
type LinkType string

const (
	LinkHierarchy   LinkType = "hierarchy"
	LinkAssociation LinkType = "association"
)

// ParseLinkType maps free-form input onto a link type. Only "hierarchy" is
// special; every other value is an association.
func ParseLinkType(s string) LinkType {
	if LinkType(strings.ToLower(strings.TrimSpace(s))) == LinkHierarchy {
		return LinkHierarchy
	}
	return LinkAssociation
}

// UnmarshalJSON normalises the link type while decoding
func (t *LinkType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = LinkAssociation
		return nil
	}
	*t = ParseLinkType(s)
	return nil
}

// Length is a pixel length. Generated mindmaps carry sizes either as JSON
// numbers or as CSS strings ("16px"), so both decode. Zero means unset.
type Length float64

// UnmarshalJSON accepts 16, "16" and "16px". Anything else ("auto", true, {})
// leaves the length unset.
func (l *Length) UnmarshalJSON(data []byte) error {
	f := lenientNumber(data)
	*l = Length(f)
	return nil
}

// Level is the depth of a node below the central one. Generated mindmaps
// sometimes quote it ("1").
type Level int

// UnmarshalJSON accepts 1, 1.0 and "1". Anything else is level 0.
func (lv *Level) UnmarshalJSON(data []byte) error {
	f := lenientNumber(data)
	*lv = Level(f)
	return nil
}

// UnmarshalJSON accepts names ("bold") and numeric weights given either as
// strings or as numbers (600)
func (w *FontWeight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*w = FontWeight(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*w = FontWeight(n.String())
		return nil
	}
	*w = ""
	return nil
}

// lenientNumber reads a JSON number, or a string holding one with an optional
// "px" suffix. Everything else reads as 0.
func lenientNumber(data []byte) float64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	if data[0] != '"' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return 0
		}
		return f
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.ToLower(s)), "px"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Position is a point in graph space
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// UnmarshalJSON accepts coordinates as numbers or numeric strings. A
// coordinate that is neither, such as a placeholder left by the generator,
// decodes as 0.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X Length `json:"x"`
		Y Length `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// null, or not an object at all
		*p = Position{}
		return nil
	}
	*p = Position{X: float64(raw.X), Y: float64(raw.Y)}
	return nil
}

// NodeStyle carries optional per-node overrides
type NodeStyle struct {
	Width           Length     `json:"width,omitempty"`
	Height          Length     `json:"height,omitempty"`
	BackgroundColor string     `json:"backgroundColor,omitempty"`
	TextColor       string     `json:"textColor,omitempty"`
	BorderColor     string     `json:"borderColor,omitempty"`
	FontSize        Length     `json:"fontSize,omitempty"`
	FontWeight      FontWeight `json:"fontWeight,omitempty"`
}

// LinkStyle carries optional per-link overrides
type LinkStyle struct {
	StrokeColor string `json:"strokeColor,omitempty"`
	StrokeWidth Length `json:"strokeWidth,omitempty"`
	Animated    bool   `json:"animated,omitempty"`
}

// RawNode is a mindmap node as received
type RawNode struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Type     NodeType   `json:"type,omitempty"`
	Level    Level      `json:"level,omitempty"`
	Position *Position  `json:"position,omitempty"`
	Style    *NodeStyle `json:"style,omitempty"`
}

// RawLink is a relationship between two nodes as received. Source and Target
// are not checked against the node set.
type RawLink struct {
	Source      string     `json:"source"`
	Target      string     `json:"target"`
	Type        LinkType   `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Style       *LinkStyle `json:"style,omitempty"`
}

// RawMindmap is the unstyled description of a mindmap
type RawMindmap struct {
	Title string    `json:"title"`
	Nodes []RawNode `json:"nodes"`
	Links []RawLink `json:"links"`
}

// Parse decodes a mindmap from JSON. A JSON null yields a nil mindmap and no error.
func Parse(data []byte) (*RawMindmap, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m RawMindmap
	if err := json.Unmarshal(data, &m); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("decode mindmap at offset %d: %w", syntaxErr.Offset, err)
		}
		return nil, fmt.Errorf("decode mindmap: %w", err)
	}
	return &m, nil
}

// Decode reads a whole mindmap document from r
func Decode(r io.Reader) (*RawMindmap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mindmap: %w", err)
	}
	return Parse(data)
}

// Fallback builds the placeholder mindmap the back end stores when generation
// fails: a single central node labelled with the document name.
func Fallback(filename string) *RawMindmap {
	return &RawMindmap{
		Title: "Mindmap for " + filename,
		Nodes: []RawNode{{
			ID:       "center",
			Label:    filename,
			Type:     NodeCentral,
			Position: &Position{X: 0, Y: 0},
		}},
		Links: []RawLink{},
	}
}
