package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"
)

func (s *Server) handleRoomCreate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "room:create", "INVALID_ACTION", "Invalid room:create payload")
		return
	}
	if s.connectionManager.GetRoom(connectionID) != "" {
		s.sendError(socket, ctx, "room:create", "INVALID_ACTION", "Already in a room")
		return
	}

	room, player, err := s.roomManager.CreateRoom(ctx, connectionID, req.PlayerName, req.SessionID, req.RoomName, req.Public)
	if err != nil {
		s.sendErr(socket, ctx, "room:create", err)
		return
	}
	s.connectionManager.SetRoom(connectionID, room.Code)

	response := ServerMessage{
		Type: "room:created",
		Payload: RoomJoinedResponse{
			RoomCode:  room.Code,
			RoomName:  room.Name,
			PlayerID:  player.ID,
			SessionID: player.SessionID,
			Color:     player.Color,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room:created: %v", err)
		return
	}

	// Push the initial state so the client renders without a round trip.
	s.sendSyncState(socket, ctx, room, connectionID)
}

func (s *Server) handleRoomJoin(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "room:join", "INVALID_ACTION", "Invalid room:join payload")
		return
	}
	if s.connectionManager.GetRoom(connectionID) != "" {
		s.sendError(socket, ctx, "room:join", "INVALID_ACTION", "Already in a room")
		return
	}

	room, player, reconnected, err := s.roomManager.JoinRoom(ctx, connectionID, req.RoomCode, req.PlayerName, req.SessionID)
	if err != nil {
		s.sendErr(socket, ctx, "room:join", err)
		return
	}
	s.connectionManager.SetRoom(connectionID, room.Code)

	response := ServerMessage{
		Type: "room:joined",
		Payload: RoomJoinedResponse{
			RoomCode:    room.Code,
			RoomName:    room.Name,
			PlayerID:    player.ID,
			SessionID:   player.SessionID,
			Color:       player.Color,
			Reconnected: reconnected,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room:joined: %v", err)
		return
	}

	s.sendSyncState(socket, ctx, room, connectionID)

	if reconnected {
		s.broadcastToRoom(room, "room:playerReconnected", PlayerConnectionNotification{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			Connected:  true,
		}, connectionID)
	} else {
		s.broadcastToRoom(room, "room:playerJoined", PlayerJoinedNotification{
			Player: PlayerInfo{
				ID:        player.ID,
				Name:      player.Name,
				Color:     player.Color,
				Connected: true,
			},
		}, connectionID)
	}
}

func (s *Server) handleRoomLeave(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	code := s.connectionManager.GetRoom(connectionID)
	if code == "" {
		s.sendError(socket, ctx, "room:leave", "INVALID_ACTION", "Not in a room")
		return
	}

	room, dep, err := s.roomManager.LeaveRoom(code, connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "room:leave", err)
		return
	}
	s.connectionManager.SetRoom(connectionID, "")

	if err := s.sendMessage(socket, ctx, ServerMessage{Type: "room:left", Payload: struct{}{}}); err != nil {
		log.Printf("Failed to send room:left: %v", err)
	}

	s.broadcastToRoom(room, "room:playerLeft", PlayerLeftNotification{
		PlayerID:   dep.Player.ID,
		PlayerName: dep.Player.Name,
		FreedLocks: dep.FreedLocks,
		Scattered:  dep.Scattered,
	}, connectionID)
}

func (s *Server) handleRoomList(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	listings, err := s.roomManager.ListRooms(ctx)
	if err != nil {
		log.Printf("Failed to list rooms: %v", err)
		s.sendError(socket, ctx, "room:list", "INTERNAL_ERROR", "Could not fetch room list")
		return
	}
	if listings == nil {
		listings = []RoomListing{}
	}
	s.sendMessage(socket, ctx, ServerMessage{
		Type:    "room:list",
		Payload: RoomListResponse{Rooms: listings},
	})
}

func (s *Server) handleRoomSettings(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req UpdateSettingsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "room:settings", "INVALID_ACTION", "Invalid room:settings payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "room:settings", err)
		return
	}

	room.mu.Lock()
	if req.Background != nil {
		room.Settings.Background = *req.Background
	}
	if req.Music != nil {
		room.Settings.Music = *req.Music
	}
	settings := room.Settings
	room.mu.Unlock()

	s.broadcastToRoom(room, "room:settingsChanged", SettingsChangedNotification{Settings: settings}, "")
	s.saveNow(room)
}

// sendSyncState builds and sends the personalized full state.
func (s *Server) sendSyncState(socket *websocket.Conn, ctx context.Context, room *Room, connectionID string) {
	state := s.buildSyncState(room, connectionID)
	if err := s.sendMessage(socket, ctx, ServerMessage{Type: "sync:state", Payload: state}); err != nil {
		log.Printf("Failed to send sync:state to %s: %v", connectionID, err)
	}
}

// buildSyncState snapshots the room for one viewer. Other players' hand
// cards are omitted entirely; only their counts are visible.
func (s *Server) buildSyncState(room *Room, forConnID string) SyncState {
	room.mu.Lock()
	defer room.mu.Unlock()

	players := make([]PlayerInfo, 0, len(room.Players))
	for _, p := range room.Players {
		players = append(players, PlayerInfo{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			Connected: p.Connected,
		})
	}

	tbl := room.Table
	state := SyncState{
		RoomCode:   room.Code,
		RoomName:   room.Name,
		OwnerName:  room.OwnerName,
		Settings:   room.Settings,
		Players:    players,
		HandCounts: tbl.HandCounts(),
		Cursors:    make(map[string]Cursor, len(room.Cursors)),
		TopZ:       tbl.TopZ,
	}
	for id, c := range room.Cursors {
		state.Cursors[id] = c
	}

	for _, card := range tbl.Cards {
		if card.OwnerID != "" && card.OwnerID != forConnID {
			continue
		}
		state.Cards = append(state.Cards, card)
	}
	for _, stack := range tbl.Stacks {
		state.Stacks = append(state.Stacks, stack)
	}
	for _, zone := range tbl.Zones {
		state.Zones = append(state.Zones, zone)
	}
	if hand, ok := tbl.Hands[forConnID]; ok {
		state.YourHand = append(state.YourHand, hand.CardIDs...)
	}
	return state
}
