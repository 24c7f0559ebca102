package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks live sockets and which room each connection
// has joined. The connection id doubles as the player id inside a room.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID → socket
	rooms       map[string]string          // connectionID → room code
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		rooms:       make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	delete(cm.rooms, id)
}

func (cm *ConnectionManager) GetConnection(id string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[id]
}

// SetRoom records which room a connection currently belongs to.
func (cm *ConnectionManager) SetRoom(id, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if roomCode == "" {
		delete(cm.rooms, id)
		return
	}
	cm.rooms[id] = roomCode
}

// GetRoom returns the room code a connection joined, or "".
func (cm *ConnectionManager) GetRoom(id string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.rooms[id]
}

// ConnectionCount returns the number of live sockets.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}
