package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/livecoach/internal/live"
)

const (
	writeWait = 10 * time.Second
	readWait  = 60 * time.Second
)

// LiveService is the part of live.Manager the transport needs.
type LiveService interface {
	Admit(p live.Params) error
	Serve(ctx context.Context, p live.Params, conn live.Conn) (live.Summary, error)
}

type WSHandler struct {
	live      LiveService
	base      context.Context
	log       *logrus.Logger
	readLimit int64
	upgrader  websocket.Upgrader
}

// NewWSHandler serves live connections on base; cancelling base drains
// and closes every open connection. An empty origins list allows any
// origin.
func NewWSHandler(base context.Context, svc LiveService, l *logrus.Logger, readLimit int64, origins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		live:      svc,
		base:      base,
		log:       l,
		readLimit: readLimit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// wsConn adapts a gorilla connection to live.Conn. Reads come from one
// goroutine; writes are serialized here as well as by the session.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_ = w.c.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := w.c.ReadMessage()
	return data, err
}

func (w *wsConn) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(writeWait))
	return w.c.WriteJSON(v)
}

func (w *wsConn) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(time.Second))
	_ = w.c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.c.Close()
}

// LiveWS upgrades GET /ws/socket_server?session_id=..&room_name=.. after
// validating the query. Invalid parameters get a plain 400.
func (h *WSHandler) LiveWS(c *gin.Context) {
	p := live.Params{
		SessionID: c.Query("session_id"),
		RoomName:  c.Query("room_name"),
	}
	if err := h.live.Admit(p); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	sum, err := h.live.Serve(h.base, p, &wsConn{c: conn})
	if err != nil {
		h.log.WithError(err).WithField("session_id", p.SessionID).Warn("live connection refused")
		return
	}
	h.log.WithFields(logrus.Fields{
		"session_id":    sum.SessionID,
		"connection_id": sum.ConnectionID,
		"state":         sum.State.String(),
	}).Debug("live handler done")
}
