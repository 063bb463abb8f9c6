package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/recera/perplexia/pkg/components/graphviewer"
	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/view"
)

// ErrNoLoader is reported when a client opens a document id but the server
// has no document source configured
var ErrNoLoader = errors.New("live: no document source configured")

// Loader resolves a document id to its mindmap
type Loader interface {
	LoadMindmap(ctx context.Context, pdfID int64) (*mindmap.RawMindmap, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, pdfID int64) (*mindmap.RawMindmap, error)

// LoadMindmap calls f
func (f LoaderFunc) LoadMindmap(ctx context.Context, pdfID int64) (*mindmap.RawMindmap, error) {
	return f(ctx, pdfID)
}

// Options configures the live server
type Options struct {
	Loader Loader
	View   *view.Options
	Logger *zap.Logger

	// PathPrefix is stripped from the request path to get the session id
	PathPrefix   string        // default "/live/"
	PingInterval time.Duration // default 54s
	PongTimeout  time.Duration // default 60s
	WriteTimeout time.Duration // default 10s
	SendBuffer   int           // default 256
	LoadTimeout  time.Duration // default 15s

	// CheckOrigin defaults to allowing every origin
	CheckOrigin func(r *http.Request) bool
}

func (o *Options) withDefaults() Options {
	d := Options{
		PathPrefix:   "/live/",
		PingInterval: 54 * time.Second,
		PongTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   256,
		LoadTimeout:  15 * time.Second,
		CheckOrigin:  func(*http.Request) bool { return true },
	}
	if o == nil {
		d.Logger = zap.NewNop()
		return d
	}
	d.Loader = o.Loader
	d.View = o.View
	d.Logger = o.Logger
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if o.PathPrefix != "" {
		d.PathPrefix = o.PathPrefix
	}
	if o.PingInterval > 0 {
		d.PingInterval = o.PingInterval
	}
	if o.PongTimeout > 0 {
		d.PongTimeout = o.PongTimeout
	}
	if o.WriteTimeout > 0 {
		d.WriteTimeout = o.WriteTimeout
	}
	if o.SendBuffer > 0 {
		d.SendBuffer = o.SendBuffer
	}
	if o.LoadTimeout > 0 {
		d.LoadTimeout = o.LoadTimeout
	}
	if o.CheckOrigin != nil {
		d.CheckOrigin = o.CheckOrigin
	}
	return d
}

// Server handles WebSocket connections, one view controller per session
type Server struct {
	upgrader websocket.Upgrader
	sessions map[string]*Session
	mu       sync.RWMutex
	opts     Options
	log      *zap.Logger
}

// Session is one connected viewer
type Session struct {
	ID string

	conn       *websocket.Conn
	server     *Server
	controller *view.Controller
	surface    *remoteSurface
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sendChan    chan []byte
	closeChan   chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

// NewServer creates a new live protocol server
func NewServer(opts *Options) *Server {
	o := opts.withDefaults()
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:     o.CheckOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[string]*Session),
		opts:     o,
		log:      o.Logger.Named("live"),
	}
}

// ServeHTTP upgrades the connection and runs the session until it disconnects
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, s.opts.PathPrefix), "/")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error
		s.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	session := s.newSession(sessionID, conn)
	session.run()
}

// newSession registers a session, replacing any older connection with the same id
func (s *Server) newSession(id string, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	session := &Session{
		ID:        id,
		conn:      conn,
		server:    s,
		log:       s.log.With(zap.String("session", id)),
		ctx:       ctx,
		cancel:    cancel,
		sendChan:  make(chan []byte, s.opts.SendBuffer),
		closeChan: make(chan struct{}),
	}

	var viewOpts view.Options
	if s.opts.View != nil {
		viewOpts = *s.opts.View
	}
	if viewOpts.Logger == nil {
		viewOpts.Logger = session.log
	}
	session.controller = view.NewController(&viewOpts)
	session.surface = &remoteSurface{
		canvas:  graphviewer.NewCanvas(0, 0, nil),
		session: session,
	}
	session.unsubscribe = session.controller.Subscribe(session.publishGraph)

	s.mu.Lock()
	old := s.sessions[id]
	s.sessions[id] = session
	s.mu.Unlock()

	if old != nil {
		old.log.Info("session taken over by a new connection")
		old.Close()
	}
	return session
}

// GetSession retrieves a session by ID
func (s *Server) GetSession(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

// Sessions returns the number of connected sessions
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown closes every session
func (s *Server) Shutdown() {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		session.Close()
	}
}

func (s *Server) removeSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[session.ID] == session {
		delete(s.sessions, session.ID)
	}
}

// Controller returns the session's view controller
func (s *Session) Controller() *view.Controller {
	return s.controller
}

// Close ends the session: pending fits are cancelled and the socket closed
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.unsubscribe()
		s.controller.Shutdown()
		close(s.closeChan)
		s.conn.Close()
		s.server.removeSession(s)
		s.log.Debug("session closed")
	})
}

func (s *Session) closed() bool {
	select {
	case <-s.closeChan:
		return true
	default:
		return false
	}
}

// run reads frames until the connection drops
func (s *Session) run() {
	defer s.Close()

	go s.writer()
	s.enqueue(ServerMessage{Type: MsgHello, Session: s.ID})
	s.log.Info("session connected")

	pongTimeout := s.server.opts.PongTimeout
	s.conn.SetReadLimit(MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("unexpected close", zap.Error(err))
			} else {
				s.log.Debug("read ended", zap.Error(err))
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongTimeout))

		if messageType != websocket.TextMessage {
			s.sendError(fmt.Errorf("%w: binary frames are not supported", ErrInvalidFields))
			continue
		}
		s.handleMessage(data)
	}
}

// writer owns all writes to the connection
func (s *Session) writer() {
	ticker := time.NewTicker(s.server.opts.PingInterval)
	defer ticker.Stop()
	writeTimeout := s.server.opts.WriteTimeout

	for {
		select {
		case message := <-s.sendChan:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				s.conn.Close()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}

		case <-s.closeChan:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

func (s *Session) handleMessage(data []byte) {
	msg, err := DecodeClient(data)
	if err != nil {
		s.sendError(err)
		return
	}

	switch msg.Type {
	case MsgInit:
		s.surface.canvas.Resize(msg.Width, msg.Height)
		s.log.Debug("surface ready", zap.Float64("width", msg.Width), zap.Float64("height", msg.Height))
		err = s.controller.AttachSurface(s.surface)

	case MsgOpen:
		var m *mindmap.RawMindmap
		m, err = s.resolve(msg)
		if err == nil {
			err = s.controller.Open(m)
		}

	case MsgClose:
		err = s.controller.Close()

	case MsgPing:
		s.enqueue(ServerMessage{Type: MsgPong})
	}

	if err != nil {
		s.sendError(err)
	}
}

// resolve turns an open frame into a mindmap. An open with neither a
// document nor an inline mindmap empties the view.
func (s *Session) resolve(msg ClientMessage) (*mindmap.RawMindmap, error) {
	if hasMindmap(msg.Mindmap) {
		m, err := mindmap.Parse(msg.Mindmap)
		if err != nil {
			return nil, fmt.Errorf("invalid mindmap: %w", err)
		}
		return m, nil
	}
	if msg.PDFID == 0 {
		return nil, nil
	}

	loader := s.server.opts.Loader
	if loader == nil {
		return nil, ErrNoLoader
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.server.opts.LoadTimeout)
	defer cancel()

	m, err := loader.LoadMindmap(ctx, msg.PDFID)
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", msg.PDFID, err)
	}
	return m, nil
}

// publishGraph runs on the controller loop for every replacement
func (s *Session) publishGraph(g mindmap.Graph) {
	s.enqueue(ServerMessage{Type: MsgGraph, Graph: &g, Version: s.controller.Version()})
}

func (s *Session) sendError(err error) {
	s.log.Debug("client error", zap.Error(err))
	s.enqueue(ServerMessage{Type: MsgError, Error: err.Error()})
}

// enqueue never blocks; frames are dropped when the client falls behind
func (s *Session) enqueue(msg ServerMessage) bool {
	if s.closed() {
		return false
	}
	data, err := EncodeServer(msg)
	if err != nil {
		s.log.Error("failed to encode frame", zap.Error(err))
		return false
	}
	select {
	case s.sendChan <- data:
		return true
	case <-s.closeChan:
		return false
	default:
		s.log.Warn("send buffer full, dropping frame", zap.String("type", string(msg.Type)))
		return false
	}
}

// remoteSurface fits on a canvas sized like the browser viewport and sends
// the resulting viewport to the client
type remoteSurface struct {
	canvas  *graphviewer.Canvas
	session *Session
}

func (r *remoteSurface) SetGraph(g mindmap.Graph) {
	r.canvas.SetGraph(g)
}

func (r *remoteSurface) FitView(opts graphviewer.FitOptions) bool {
	if r.session.closed() || !r.canvas.FitView(opts) {
		return false
	}
	vp := r.canvas.Viewport()
	return r.session.enqueue(ServerMessage{Type: MsgFit, Viewport: &vp, Padding: opts.Padding})
}
