package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(map[string]any{
		"status":      "ok",
		"connections": s.connectionManager.ConnectionCount(),
	})
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	s.health.UpdateActivity(connectionID)

	defer func() {
		roomCode := s.connectionManager.GetRoom(connectionID)
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.health.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)

		if roomCode == "" {
			return
		}
		// Socket dropped without room:leave: keep identity for a
		// session-matched rejoin, release locks, tell the room.
		room, dep, err := s.roomManager.DisconnectPlayer(roomCode, connectionID)
		if err != nil {
			return
		}
		s.broadcastToRoom(room, "room:playerDisconnected", PlayerConnectionNotification{
			PlayerID:   dep.Player.ID,
			PlayerName: dep.Player.Name,
			Connected:  false,
			FreedLocks: dep.FreedLocks,
		}, connectionID)
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}
		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		s.health.UpdateActivity(connectionID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "", "INVALID_ACTION", "Invalid JSON")
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, msg.Type, "RATE_LIMITED", "Too many messages, slow down")
			continue
		}

		s.dispatch(socket, ctx, connectionID, msg)
	}
}

// dispatch routes one message. A panic in a handler is contained to that
// message: the client gets INTERNAL_ERROR and the connection lives on.
func (s *Server) dispatch(socket *websocket.Conn, ctx context.Context, connectionID string, msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic handling '%s' from %s: %v", msg.Type, connectionID, r)
			s.sendError(socket, ctx, msg.Type, "INTERNAL_ERROR", "Internal server error")
		}
	}()

	switch msg.Type {
	case "ping":
		s.sendMessage(socket, ctx, ServerMessage{Type: "pong", Payload: struct{}{}})

	case "room:create":
		s.handleRoomCreate(socket, ctx, connectionID, msg.Payload)
	case "room:join":
		s.handleRoomJoin(socket, ctx, connectionID, msg.Payload)
	case "room:leave":
		s.handleRoomLeave(socket, ctx, connectionID, msg.Payload)
	case "room:list":
		s.handleRoomList(socket, ctx, connectionID, msg.Payload)
	case "room:settings":
		s.handleRoomSettings(socket, ctx, connectionID, msg.Payload)

	case "card:move":
		s.handleCardMove(socket, ctx, connectionID, msg.Payload)
	case "card:flip":
		s.handleCardFlip(socket, ctx, connectionID, msg.Payload)

	case "lock:acquire":
		s.handleLockAcquire(socket, ctx, connectionID, msg.Payload)
	case "lock:release":
		s.handleLockRelease(socket, ctx, connectionID, msg.Payload)

	case "stack:create":
		s.handleStackCreate(socket, ctx, connectionID, msg.Payload)
	case "stack:move":
		s.handleStackMove(socket, ctx, connectionID, msg.Payload)
	case "stack:addCard":
		s.handleStackAddCard(socket, ctx, connectionID, msg.Payload)
	case "stack:removeCard":
		s.handleStackRemoveCard(socket, ctx, connectionID, msg.Payload)
	case "stack:merge":
		s.handleStackMerge(socket, ctx, connectionID, msg.Payload)
	case "stack:shuffle":
		s.handleStackShuffle(socket, ctx, connectionID, msg.Payload)
	case "stack:flip":
		s.handleStackFlip(socket, ctx, connectionID, msg.Payload)
	case "stack:reorder":
		s.handleStackReorder(socket, ctx, connectionID, msg.Payload)

	case "zone:create":
		s.handleZoneCreate(socket, ctx, connectionID, msg.Payload)
	case "zone:update":
		s.handleZoneUpdate(socket, ctx, connectionID, msg.Payload)
	case "zone:delete":
		s.handleZoneDelete(socket, ctx, connectionID, msg.Payload)
	case "zone:addCard":
		s.handleZoneAddCard(socket, ctx, connectionID, msg.Payload)
	case "zone:addCards":
		s.handleZoneAddCards(socket, ctx, connectionID, msg.Payload)

	case "hand:addCard":
		s.handleHandAddCard(socket, ctx, connectionID, msg.Payload)
	case "hand:removeCard":
		s.handleHandRemoveCard(socket, ctx, connectionID, msg.Payload)
	case "hand:addStack":
		s.handleHandAddStack(socket, ctx, connectionID, msg.Payload)
	case "hand:reorder":
		s.handleHandReorder(socket, ctx, connectionID, msg.Payload)

	case "table:reset":
		s.handleTableReset(socket, ctx, connectionID, msg.Payload)
	case "cursor:update":
		s.handleCursorUpdate(socket, ctx, connectionID, msg.Payload)
	case "sync":
		s.handleSync(socket, ctx, connectionID, msg.Payload)

	case "chat:send":
		s.handleChatSend(socket, ctx, connectionID, msg.Payload)
	case "chat:history":
		s.handleChatHistory(socket, ctx, connectionID, msg.Payload)

	default:
		log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
		s.sendError(socket, ctx, msg.Type, "INVALID_ACTION", fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, action, code, message string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Code:    code,
			Message: message,
			Action:  action,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// sendErr reports a domain error whose text is "CODE: message". Errors
// without a recognized code collapse to INTERNAL_ERROR so internals never
// leak to clients.
func (s *Server) sendErr(socket *websocket.Conn, ctx context.Context, action string, err error) {
	code, message := splitErrorCode(err)
	s.sendError(socket, ctx, action, code, message)
}

var knownErrorCodes = map[string]bool{
	"INVALID_ACTION": true,
	"NOT_FOUND":      true,
	"FULL":           true,
	"RATE_LIMITED":   true,
	"INTERNAL_ERROR": true,
}

func splitErrorCode(err error) (string, string) {
	text := err.Error()
	if code, message, ok := strings.Cut(text, ": "); ok && knownErrorCodes[code] {
		return code, message
	}
	log.Printf("Unclassified error: %v", err)
	return "INTERNAL_ERROR", "Internal server error"
}

// broadcastToRoom sends a message to every connected player except the
// one named by excludeConnID (pass "" to include everyone). Member ids
// are collected under the room lock; writes happen outside it.
func (s *Server) broadcastToRoom(room *Room, messageType string, payload interface{}, excludeConnID string) {
	room.mu.Lock()
	targets := make([]string, 0, len(room.Players))
	for id, p := range room.Players {
		if p.Connected && id != excludeConnID {
			targets = append(targets, id)
		}
	}
	room.mu.Unlock()

	msg := ServerMessage{Type: messageType, Payload: payload}
	for _, id := range targets {
		conn := s.connectionManager.GetConnection(id)
		if conn == nil {
			continue
		}
		// Use background context for broadcasts
		if err := s.sendMessage(conn, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast %s to %s: %v", messageType, id, err)
		}
	}
}

// roomAndPlayer resolves the caller's room membership, the precondition
// for every in-room message.
func (s *Server) roomAndPlayer(connectionID string) (*Room, *Player, error) {
	code := s.connectionManager.GetRoom(connectionID)
	if code == "" {
		return nil, nil, fmt.Errorf("INVALID_ACTION: not in a room")
	}
	room, ok := s.roomManager.RoomFor(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	room.mu.Lock()
	player, ok := room.Players[connectionID]
	room.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("INVALID_ACTION: not a member of this room")
	}
	return room, player, nil
}

// scheduleSave queues a debounced write for the caller's room.
func (s *Server) scheduleSave(room *Room) {
	s.roomManager.scheduler.ScheduleSave(room.Code, s.roomManager.supplierFor(room.Code))
}

// saveNow bypasses the debounce for structural changes (zones, resets,
// settings) where losing the write would be costly.
func (s *Server) saveNow(room *Room) {
	s.roomManager.scheduler.SaveNow(room.Code, s.roomManager.supplierFor(room.Code))
}
