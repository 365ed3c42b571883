package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"parley/pkg/auth"
	"parley/pkg/fanout"
	"parley/pkg/logger"
	"parley/pkg/models"
	"parley/pkg/store"
	"parley/pkg/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the perimeter middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	wsPingInterval  = 30 * time.Second
	wsWriteWait     = 10 * time.Second
	wsMaxFrameBytes = int64(8 * 1024)
)

// ConfigureWS applies fan-out websocket tunables at startup.
func ConfigureWS(pingInterval time.Duration, maxFrameBytes int64) {
	if pingInterval > 0 {
		wsPingInterval = pingInterval
	}
	if maxFrameBytes > 0 {
		wsMaxFrameBytes = maxFrameBytes
	}
}

// RegisterWS registers the live notification socket.
func RegisterWS(r *mux.Router) {
	r.HandleFunc("/ws", serveWS).Methods(http.MethodGet)
}

// wsFrame is the inbound client frame: join/leave adjust room
// subscriptions, typing relays an ephemeral signal to the room.
type wsFrame struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// serveWS upgrades the connection, subscribes it to all of the caller's
// rooms, and pumps notifications until either side closes.
func serveWS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "user", userID, "error", err)
		return
	}

	hub := fanout.DefaultHub
	sub := hub.Register(userID)
	telemetry.LiveSubscribers.Inc()
	defer func() {
		hub.Unregister(sub.ConnID)
		telemetry.LiveSubscribers.Dec()
		_ = conn.Close()
	}()

	// follow every room the user is currently a member of
	if rooms, err := store.RoomsForUser(userID); err == nil {
		for _, room := range rooms {
			hub.JoinRoom(sub.ConnID, room.ID)
		}
	}

	done := make(chan struct{})
	go writePump(conn, sub, done)
	readPump(conn, hub, sub, userID)
	<-done
}

// readPump consumes client frames until the connection drops.
func readPump(conn *websocket.Conn, hub *fanout.Hub, sub *fanout.Subscriber, userID string) {
	conn.SetReadLimit(wsMaxFrameBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Room == "" {
			continue
		}
		switch f.Type {
		case "join":
			if memberOf(userID, f.Room) {
				hub.JoinRoom(sub.ConnID, f.Room)
			}
		case "leave":
			hub.LeaveRoom(sub.ConnID, f.Room)
		case "typing":
			if memberOf(userID, f.Room) {
				hub.Publish(models.Notification{
					Kind:   models.EventTyping,
					Room:   f.Room,
					Actor:  userID,
					UserID: userID,
				})
			}
		}
	}
}

// writePump streams notifications and keepalive pings to the client.
func writePump(conn *websocket.Conn, sub *fanout.Subscriber, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func memberOf(userID, roomID string) bool {
	r, err := store.GetRoom(roomID)
	if err != nil {
		return false
	}
	return r.IsMember(userID)
}
