package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

type notificationMessage struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
}

// ConnectionManager tracks open notification feeds per user and pushes
// freshly persisted notifications to them.
type ConnectionManager struct {
	userConns map[string]map[*Connection]struct{}
	mutex     sync.RWMutex
	log       logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		userConns: make(map[string]map[*Connection]struct{}),
		log:       log,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn *Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	conns := cm.userConns[conn.UserID()]
	if conns == nil {
		conns = make(map[*Connection]struct{})
		cm.userConns[conn.UserID()] = conns
	}
	conns[conn] = struct{}{}

	cm.log.Info("Connection registered", "user_id", conn.UserID(), "user_connections", len(conns))
}

func (cm *ConnectionManager) UnregisterConnection(conn *Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if conns, exists := cm.userConns[conn.UserID()]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(cm.userConns, conn.UserID())
		}
	}

	cm.log.Info("Connection unregistered", "user_id", conn.UserID())
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []*Connection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := make([]*Connection, 0, len(cm.userConns[userID]))
	for conn := range cm.userConns[userID] {
		connections = append(connections, conn)
	}
	return connections
}

// ConnectionCount returns the number of open feeds across all users.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	count := 0
	for _, conns := range cm.userConns {
		count += len(conns)
	}
	return count
}

// Push delivers n to every open feed of its recipient. Users without a feed
// read it later from the notification list.
func (cm *ConnectionManager) Push(ctx context.Context, n *domain.Notification) {
	connections := cm.GetConnectionsForUser(n.UserID)
	if len(connections) == 0 {
		return
	}

	messageBytes, err := json.Marshal(notificationMessage{Type: "notification", Notification: n})
	if err != nil {
		cm.log.Error("Failed to encode notification", "notification_id", n.ID, "error", err)
		return
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Warn("Failed to push notification", "user_id", n.UserID,
				"notification_id", n.ID, "error", err)
		}
	}
}

// CloseAll closes every open feed. Used on shutdown.
func (cm *ConnectionManager) CloseAll() {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	for _, conns := range cm.userConns {
		for conn := range conns {
			conn.Close()
		}
	}
}
