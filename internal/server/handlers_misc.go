package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/coder/websocket"
)

func (s *Server) handleTableReset(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "table:reset", err)
		return
	}

	room.mu.Lock()
	// Every entity id becomes invalid, so held locks go first.
	room.Locks.ReleaseAll()
	room.Table.Reset()
	room.mu.Unlock()

	log.Printf("Room %s reset by %s", room.Code, player.Name)

	// Deltas are useless after a reset; everyone gets a fresh full state.
	s.broadcastSyncState(room)

	// A reset is worth immediate durability.
	s.saveNow(room)
}

func (s *Server) handleCursorUpdate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CursorUpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "cursor:update", "INVALID_ACTION", "Invalid cursor:update payload")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "cursor:update", err)
		return
	}

	room.mu.Lock()
	room.Cursors[player.ID] = Cursor{X: req.X, Y: req.Y}
	room.mu.Unlock()

	// Cursors are ephemeral: broadcast only, never persisted.
	s.broadcastToRoom(room, "cursor:updated", CursorNotification{
		PlayerID: player.ID,
		X:        req.X,
		Y:        req.Y,
	}, connectionID)
}

func (s *Server) handleSync(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "sync", err)
		return
	}
	s.sendSyncState(socket, ctx, room, connectionID)
}

func (s *Server) handleChatSend(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ChatSendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "chat:send", "INVALID_ACTION", "Invalid chat:send payload")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.sendError(socket, ctx, "chat:send", "INVALID_ACTION", "Message cannot be empty")
		return
	}
	if len(message) > 500 {
		s.sendError(socket, ctx, "chat:send", "INVALID_ACTION", "Message too long (max 500 characters)")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "chat:send", err)
		return
	}

	entry := ChatEntry{
		RoomCode:   room.Code,
		PlayerName: player.Name,
		Message:    message,
		SentAt:     time.Now(),
	}
	if err := s.store.AppendChat(ctx, entry); err != nil {
		// Chat still flows if the log write fails.
		log.Printf("Failed to persist chat for %s: %v", room.Code, err)
	}

	s.broadcastToRoom(room, "chat:message", ChatMessageNotification{
		PlayerName: entry.PlayerName,
		Message:    entry.Message,
		SentAt:     entry.SentAt,
	}, "")
}

func (s *Server) handleChatHistory(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ChatHistoryRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "chat:history", "INVALID_ACTION", "Invalid chat:history payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "chat:history", err)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	entries, err := s.store.LoadChat(ctx, room.Code, limit)
	if err != nil {
		log.Printf("Failed to load chat for %s: %v", room.Code, err)
		s.sendError(socket, ctx, "chat:history", "INTERNAL_ERROR", "Could not load chat history")
		return
	}
	if entries == nil {
		entries = []ChatEntry{}
	}
	s.sendMessage(socket, ctx, ServerMessage{
		Type:    "chat:history",
		Payload: ChatHistoryResponse{Messages: entries},
	})
}

// broadcastSyncState pushes a personalized full state to every connected
// member. Used after a reset, where incremental deltas can't help.
func (s *Server) broadcastSyncState(room *Room) {
	room.mu.Lock()
	targets := make([]string, 0, len(room.Players))
	for id, p := range room.Players {
		if p.Connected {
			targets = append(targets, id)
		}
	}
	room.mu.Unlock()

	for _, id := range targets {
		conn := s.connectionManager.GetConnection(id)
		if conn == nil {
			continue
		}
		state := s.buildSyncState(room, id)
		if err := s.sendMessage(conn, context.Background(), ServerMessage{
			Type:    "sync:state",
			Payload: state,
		}); err != nil {
			log.Printf("Failed to push sync:state to %s: %v", id, err)
		}
	}
}
