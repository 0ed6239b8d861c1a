package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"silent-auction/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// ErrSlowConsumer is returned by Send when the connection's outbound buffer
// is full. The connection is closed.
var ErrSlowConsumer = errors.New("websocket: slow consumer")

var errConnectionClosed = errors.New("websocket: connection closed")

// Connection is one subscriber socket. Writes go through a buffered channel
// drained by writePump, so Send never blocks on the network.
type Connection struct {
	conn   *websocket.Conn
	userID string
	log    logger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(conn *websocket.Conn, userID string, log logger.Logger) *Connection {
	return &Connection{
		conn:   conn,
		userID: userID,
		log:    log,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) Send(message []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.done:
		return errConnectionClosed
	default:
		c.Close()
		return ErrSlowConsumer
	}
}

func (c *Connection) sendJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump owns all writes to the socket and closes it on exit.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("Websocket write failed", "user_id", c.userID, "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump consumes client frames until the peer goes away. The only client
// message understood is {"type":"ping"}.
func (c *Connection) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Websocket read failed", "user_id", c.userID, "error", err)
			}
			return
		}

		if msg.Type == "ping" {
			c.sendJSON(map[string]string{"type": "pong"})
		}
	}
}
