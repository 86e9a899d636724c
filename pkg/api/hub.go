package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/chenBenjamin97/traffic-vision/pkg/stream"
	"github.com/chenBenjamin97/traffic-vision/pkg/utils"
)

const (
	writeWait          = 10 * time.Second
	maxMessageBytes    = 8 << 20
	defaultEventBuffer = 64
)

//client events
const (
	eventProcessVideo      = "process_video"
	eventStartCameraStream = "start_camera_stream"
	eventCameraFrame       = "camera_frame"
	eventStop              = "stop"
)

//server events besides the session lifecycle
const (
	eventConnected           = "connected"
	eventCameraStreamStarted = "camera_stream_started"
)

//Envelope is the wire shape of every websocket message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

//HubOptions wires the hub to the detection stack. OpenFile and Decode are required.
type HubOptions struct {
	SourceDir string
	//Session is the template every session config starts from
	Session   stream.Config
	Detector  stream.Detector
	Annotator stream.Annotator
	//Sink receives every session event besides the hub itself (preview, kafka)
	Sink     stream.EventSink
	OpenFile func(path string) stream.Opener
	Decode   func(data []byte) (stream.Frame, error)
	//EventBuffer bounds the outgoing queue of a connection, events past it are dropped
	EventBuffer int
	//OnDisconnect runs once a connection is gone
	OnDisconnect func(sessionID string)
	Clock        clock.Clock
	Logger       *zap.SugaredLogger
}

//Hub serves the websocket viewers. Every connection owns one session id and at most one running session,
//and the hub routes that session's events back to it.
type Hub struct {
	opts     HubOptions
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
	//sessions counts running session goroutines, Close waits on it
	sessions sync.WaitGroup
}

//errHubClosed rejects connections and sessions once Close ran
var errHubClosed = errors.New("server is shutting down")

func NewHub(opts HubOptions) *Hub {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  opts.Logger,
		clients: make(map[string]*client),
	}
}

//Publish implements stream.EventSink. It never blocks: a full connection queue drops the event.
func (h *Hub) Publish(sessionID string, kind stream.EventKind, payload interface{}) {
	msg, err := json.Marshal(outgoing{Event: string(kind), Data: payload})
	if err != nil {
		h.logger.Warnw("event not encoded", "session", sessionID, "event", kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[sessionID]
	if !ok {
		return
	}
	c.enqueue(msg)
}

//Connections returns the number of connected viewers
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

//ServeHTTP upgrades the request and serves the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.opts.EventBuffer),
		logger: h.logger,
	}
	c.logger = h.logger.With("session", c.id)

	if err := h.register(c); err != nil {
		conn.Close()
		return
	}
	go c.writePump()

	c.reply(eventConnected, map[string]string{"session_id": c.id})
	c.logger.Infow("viewer connected", "remote", r.RemoteAddr)

	c.readPump()

	c.stopSession(false)
	h.unregister(c)
	c.logger.Infow("viewer disconnected")
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}
	h.clients[c.id] = c
	return nil
}

//beginSession reserves a slot in the session group, it fails once the hub is closed
func (h *Hub) beginSession() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errHubClosed
	}
	h.sessions.Add(1)
	return nil
}

//Close cancels every running session, closes every connection and waits for the sessions to return.
//It must run before the detector and the sinks are released.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stopSession(false)
		c.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "sessions still running")
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	close(c.send)
	h.mu.Unlock()

	if h.opts.OnDisconnect != nil {
		h.opts.OnDisconnect(c.id)
	}
}

//activeSession is the running session of a connection
type activeSession struct {
	cancel context.CancelFunc
	live   *stream.LiveSource
}

type client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.SugaredLogger

	mu     sync.Mutex
	active *activeSession
}

//enqueue must be called with the hub read lock held, so send is never closed underneath it
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Debugw("viewer queue full, event dropped")
	}
}

func (c *client) reply(event string, data interface{}) {
	c.hub.Publish(c.id, stream.EventKind(event), data)
}

func (c *client) replyError(err error) {
	c.reply(string(stream.EventError), stream.ErrorEvent{Message: err.Error()})
}

func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			break
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Debugw("websocket write failed", "error", err)
			break
		}
	}
	//unblocks readPump when the writer fails first
	c.conn.Close()
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageBytes)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugw("websocket read failed", "error", err)
			}
			return
		}

		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError(errors.Wrap(stream.ErrInvalidInput, "malformed message"))
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg Envelope) {
	switch msg.Event {
	case eventProcessVideo:
		var req struct {
			Filename string `json:"filename"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.replyError(errors.Wrap(stream.ErrInvalidInput, "malformed process_video request"))
			return
		}
		if err := c.processVideo(req.Filename); err != nil {
			c.replyError(err)
		}

	case eventStartCameraStream:
		if err := c.startCamera(); err != nil {
			c.replyError(err)
			return
		}
		c.reply(eventCameraStreamStarted, map[string]string{
			"session_id": c.id,
			"message":    "Camera stream processing started",
		})

	case eventCameraFrame:
		var req struct {
			Frame string `json:"frame"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Frame == "" {
			c.replyError(errors.Wrap(stream.ErrInvalidInput, "no frame data received"))
			return
		}
		c.pushFrame(req.Frame)

	case eventStop:
		c.stopSession(true)

	default:
		c.replyError(errors.Wrapf(stream.ErrInvalidInput, "unknown event %q", msg.Event))
	}
}

func (c *client) processVideo(filename string) error {
	name := utils.SafeName(filename)
	if name == "" || name != filename || !utils.AllowedFile(name) {
		return errors.Wrapf(stream.ErrInvalidInput, "invalid video name %q", filename)
	}
	path := filepath.Join(c.hub.opts.SourceDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return errors.Wrap(stream.ErrInvalidInput, "video file not found")
	}

	return c.startSession(stream.SourceFile, c.hub.opts.OpenFile(path), nil)
}

func (c *client) startCamera() error {
	live := stream.NewLiveSource()
	open := func(context.Context) (stream.FrameSource, error) { return live, nil }
	if err := c.startSession(stream.SourceCamera, open, live); err != nil {
		live.Close()
		return err
	}
	return nil
}

func (c *client) startSession(kind stream.SourceKind, open stream.Opener, live *stream.LiveSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return errors.Wrap(stream.ErrInvalidInput, "a session is already running on this connection")
	}

	if err := c.hub.beginSession(); err != nil {
		return err
	}

	opts := c.hub.opts
	cfg := opts.Session
	cfg.SessionID = c.id
	cfg.Kind = kind

	ctx, cancel := context.WithCancel(context.Background())
	active := &activeSession{cancel: cancel, live: live}
	c.active = active

	sess := stream.NewSession(cfg, open, opts.Detector, opts.Annotator,
		stream.MultiSink{opts.Sink, c.hub}, opts.Clock, c.hub.logger)

	go func() {
		defer c.finish(active)
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warnw("session ended with error", "error", err)
		}
	}()
	return nil
}

func (c *client) finish(a *activeSession) {
	defer c.hub.sessions.Done()
	a.cancel()
	if a.live != nil {
		a.live.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == a {
		c.active = nil
	}
}

func (c *client) pushFrame(encoded string) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil || active.live == nil {
		c.logger.Debugw("camera frame without a camera stream, dropped")
		return
	}

	raw, err := decodeDataURL(encoded)
	if err != nil {
		c.logger.Debugw("camera frame not decoded", "error", err)
		return
	}
	frame, err := c.hub.opts.Decode(raw)
	if err != nil {
		c.logger.Debugw("camera frame not decoded", "error", err)
		return
	}
	active.live.Push(frame)
}

//stopSession ends the running session. A graceful stop lets a camera session drain and complete,
//anything else cancels it without a terminal event.
func (c *client) stopSession(graceful bool) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active == nil {
		return
	}

	if graceful && active.live != nil {
		active.live.Close()
		return
	}
	active.cancel()
	if active.live != nil {
		active.live.Close()
	}
}

//decodeDataURL accepts plain base64 or a data URL such as "data:image/jpeg;base64,..."
func decodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.Wrap(stream.ErrInvalidInput, "malformed data url")
		}
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(stream.ErrInvalidInput, "frame is not base64: %v", err)
	}
	return raw, nil
}
