package httpapi

import (
	"sync"
	"time"

	"webconferencing/internal/presence"
	"webconferencing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// eventMessage is one frame sent to a websocket client.
type eventMessage struct {
	Type presence.EventKind `json:"type"`
	Data any                `json:"data"`
}

// wsListener forwards call events of one user to one websocket connection.
type wsListener struct {
	userID   string
	clientID string

	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *wsListener) UserID() string   { return l.userID }
func (l *wsListener) ClientID() string { return l.clientID }

func (l *wsListener) OnCallStateChanged(e presence.StateChange) error {
	return l.write(eventMessage{Type: presence.EventStateChanged, Data: e})
}

func (l *wsListener) OnParticipantJoined(e presence.Membership) error {
	return l.write(eventMessage{Type: presence.EventParticipantJoined, Data: e})
}

func (l *wsListener) OnParticipantLeaved(e presence.Membership) error {
	return l.write(eventMessage{Type: presence.EventParticipantLeaved, Data: e})
}

func (l *wsListener) write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return l.conn.WriteJSON(v)
}

func (l *wsListener) ping() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (h Handlers) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.CheckOrigin,
	}
}

// Events upgrades to a websocket and streams the caller's call events
// until the client disconnects. client_id identifies the browser tab; a
// random one is assigned when missing.
func (h Handlers) Events(c *gin.Context) {
	uid := callerID(c)
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	log := logger.FromGin(c).With("user_id", uid, "client_id", clientID)

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	l := &wsListener{userID: uid, clientID: clientID, conn: conn}
	if err := h.Calls.AddListener(l); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(wsWriteWait))
		return
	}
	defer h.Calls.RemoveListener(l)
	log.Info("call listener connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := l.ping(); err != nil {
					return
				}
			}
		}
	}()

	// Clients send nothing meaningful; reading drives pong and close handling.
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("call listener closed unexpectedly", "err", err)
			}
			break
		}
	}
	log.Info("call listener disconnected")
}
