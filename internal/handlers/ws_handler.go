package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/nano-feed/backend/internal/engagement"
	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/profile"
	"github.com/anonto42/nano-feed/backend/internal/services"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type wsCommand struct {
	Action string `json:"action"`
}

// wsSession serializes writes to one connection and reports when the peer
// goes away.
type wsSession struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	gone     chan struct{}
	commands chan wsCommand
	log      zerolog.Logger
}

func openSession(c echo.Context) (*wsSession, error) {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil, err
	}
	s := &wsSession{
		conn:     conn,
		gone:     make(chan struct{}),
		commands: make(chan wsCommand, 8),
		log:      logging.Component("ws").With().Str("path", c.Path()).Str("uid", middleware.UID(c)).Logger(),
	}
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.readLoop()
	go s.pingLoop()
	_ = s.send("connected", nil)
	return s, nil
}

func (s *wsSession) readLoop() {
	defer close(s.gone)
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil || cmd.Action == "" {
			_ = s.sendError("unknown command")
			continue
		}
		select {
		case s.commands <- cmd:
		default:
			_ = s.sendError("too many pending commands")
		}
	}
}

func (s *wsSession) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.gone:
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *wsSession) send(event string, data any) error {
	b, err := json.Marshal(wsEvent{Event: event, Data: data})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSession) sendError(msg string) error {
	b, _ := json.Marshal(wsEvent{Event: "error", Message: msg})
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSession) close() {
	s.mu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	s.mu.Unlock()
	_ = s.conn.Close()
}

// StreamHandler serves the live websocket streams
type StreamHandler struct {
	store     store.Store
	watcher   *feed.Watcher
	fanout    *services.FanoutService
	feedLimit int
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(s store.Store, watcher *feed.Watcher, fanout *services.FanoutService, feedLimit int) *StreamHandler {
	return &StreamHandler{store: s, watcher: watcher, fanout: fanout, feedLimit: feedLimit}
}

// RegisterStreamRoutes registers websocket routes
func (h *StreamHandler) RegisterStreamRoutes(g *echo.Group) {
	g.GET("/ws/feed", h.StreamFeed)
	g.GET("/ws/posts/:id", h.StreamPost)
	g.GET("/ws/users/:id/profile", h.StreamProfile)
}

// StreamFeed pushes the caller's following feed, or the popular feed with
// ?kind=popular.
func (h *StreamHandler) StreamFeed(c echo.Context) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var live *feed.Live
	var err error
	switch kind := c.QueryParam("kind"); kind {
	case "", "following":
		live, err = h.watcher.Following(ctx, middleware.UID(c), h.feedLimit)
	case "popular":
		live, err = h.watcher.Popular(ctx, h.feedLimit)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be following or popular")
	}
	if err != nil {
		return httpError(err)
	}
	defer live.Close()

	sess, err := openSession(c)
	if err != nil {
		return nil
	}
	defer sess.close()

	for {
		select {
		case <-sess.gone:
			return nil
		case list, ok := <-live.Updates():
			if !ok {
				return nil
			}
			if err := sess.send("feed", nonNil(list)); err != nil {
				return nil
			}
		}
	}
}

// StreamPost pushes the caller's upvote state of a post. The client may send
// {"action":"toggle_upvote"}; the toggle direction comes from the confirmed
// flag and the next toggle is accepted once the write's snapshot arrives.
func (h *StreamHandler) StreamPost(c echo.Context) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	postID := c.Param("id")

	tracker, err := engagement.TrackUpvotes(ctx, h.store, postID, middleware.UID(c))
	if err != nil {
		return httpError(err)
	}
	defer tracker.Close()

	sess, err := openSession(c)
	if err != nil {
		return nil
	}
	defer sess.close()

	var writes sync.WaitGroup
	defer func() {
		cancel()
		writes.Wait()
	}()
	write := func(ctx context.Context, upvoted bool) error {
		_, err := h.fanout.ToggleUpvote(ctx, postID, upvoted)
		return err
	}
	busy := false
	done := make(chan error, 1)

	for {
		select {
		case <-sess.gone:
			return nil
		case st, ok := <-tracker.Updates():
			if !ok {
				return nil
			}
			if err := sess.send("upvote", st); err != nil {
				return nil
			}
		case cmd := <-sess.commands:
			if cmd.Action != "toggle_upvote" {
				_ = sess.sendError("unknown command")
				continue
			}
			if busy {
				_ = sess.sendError(engagement.ErrToggleInFlight.Error())
				continue
			}
			busy = true
			writes.Add(1)
			go func() {
				defer writes.Done()
				done <- tracker.Toggle(ctx, write)
			}()
		case err := <-done:
			busy = false
			if err != nil && ctx.Err() == nil {
				_ = sess.sendError(err.Error())
			}
		}
	}
}

// StreamProfile pushes the profile aggregate and the caller's follow state.
func (h *StreamHandler) StreamProfile(c echo.Context) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	targetID := c.Param("id")

	agg, err := profile.Open(ctx, h.store, h.watcher, targetID, h.feedLimit)
	if err != nil {
		return httpError(err)
	}
	defer agg.Close()
	follow, err := engagement.TrackFollow(ctx, h.store, middleware.UID(c), targetID)
	if err != nil {
		return httpError(err)
	}
	defer follow.Close()

	sess, err := openSession(c)
	if err != nil {
		return nil
	}
	defer sess.close()

	ready := agg.Ready()
	var pending *models.ProfileView
	for {
		select {
		case <-sess.gone:
			return nil
		case <-ready:
			ready = nil
			v := agg.View()
			pending = &v
		case v, ok := <-agg.Changes():
			if !ok {
				return nil
			}
			pending = &v
		case st, ok := <-follow.Updates():
			if !ok {
				return nil
			}
			if err := sess.send("follow", st); err != nil {
				return nil
			}
		}
		if pending != nil && ready == nil {
			if err := sess.send("profile", *pending); err != nil {
				return nil
			}
			pending = nil
		}
	}
}
