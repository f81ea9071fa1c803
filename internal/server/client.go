package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	maxEventSize = 4096
)

// Client is one live websocket connection bound to a verified user.
// The registry owns its lifetime; it is destroyed on transport close.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerEvent
	rooms      map[string]struct{}
	roomsMu    sync.RWMutex
	stop       chan struct{}
	// disconnectOnce makes the reconciler's disconnect path fire
	// exactly once even if transport loss and shutdown race.
	disconnectOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		id:         uuid.NewString(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerEvent, 256),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeFrame(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.disconnect()
	}()

	c.conn.SetReadLimit(maxEventSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueEvent(NewErrorEvent(0, "Malformed event payload"))
			continue
		}

		c.chatServer.dispatch(c, &ev)
	}
}

// queueEvent enqueues without blocking; a full buffer means this
// receiver misses the event rather than stalling the sender.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Printf("send buffer full for user %q, dropping event", c.user.Username)
		return false
	}

	return true
}

func (c *Client) writeFrame(msgType int, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write frame: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) disconnect() {
	c.disconnectOnce.Do(func() {
		c.chatServer.handleDisconnect(c)
		close(c.stop)
	})
}

// close tears down the transport, which drives Read to exit and run the
// disconnect path.
func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
		return
	}
	c.disconnect()
}

func (c *Client) trackRoom(roomId string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()

	c.rooms[roomId] = struct{}{}
}

func (c *Client) untrackRoom(roomId string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()

	delete(c.rooms, roomId)
}

func (c *Client) inRoom(roomId string) bool {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()

	_, ok := c.rooms[roomId]
	return ok
}

func (c *Client) joinedRooms() []string {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for roomId := range c.rooms {
		rooms = append(rooms, roomId)
	}

	return rooms
}
