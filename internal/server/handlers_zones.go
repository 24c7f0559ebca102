package server

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"

	"tabletop-server/internal/table"
)

func (s *Server) handleZoneCreate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ZoneCreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "zone:create", "INVALID_ACTION", "Invalid zone:create payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "zone:create", err)
		return
	}

	room.mu.Lock()
	zone := room.Table.CreateZone(table.ZoneSpec{
		X:          req.X,
		Y:          req.Y,
		W:          req.W,
		H:          req.H,
		Label:      req.Label,
		FaceUp:     req.FaceUp,
		Visibility: table.Visibility(req.Visibility),
		OwnerID:    req.OwnerID,
		Layout:     table.Layout(req.Layout),
		Scale:      req.Scale,
		Spacing:    req.Spacing,
		Jitter:     req.Jitter,
	})
	room.mu.Unlock()

	s.broadcastToRoom(room, "zone:created", zone, "")
	s.saveNow(room)
}

func (s *Server) handleZoneUpdate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ZoneUpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "zone:update", "INVALID_ACTION", "Invalid zone:update payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "zone:update", err)
		return
	}

	patch := table.ZonePatch{
		X:       req.X,
		Y:       req.Y,
		W:       req.W,
		H:       req.H,
		Label:   req.Label,
		FaceUp:  req.FaceUp,
		Locked:  req.Locked,
		Scale:   req.Scale,
		Spacing: req.Spacing,
		Jitter:  req.Jitter,
	}
	if req.Visibility != nil {
		v := table.Visibility(*req.Visibility)
		patch.Visibility = &v
	}
	if req.Layout != nil {
		l := table.Layout(*req.Layout)
		patch.Layout = &l
	}

	room.mu.Lock()
	zone := room.Table.UpdateZone(req.ID, patch)
	var stack *table.Stack
	var cards []*table.Card
	if zone != nil && zone.StackID != nil {
		if st, ok := room.Table.Stacks[*zone.StackID]; ok {
			stack = st
			cards = memberCards(room.Table, st)
		}
	}
	room.mu.Unlock()
	if zone == nil {
		s.sendError(socket, ctx, "zone:update", "NOT_FOUND", "Zone not found")
		return
	}

	s.broadcastToRoom(room, "zone:updated", ZoneUpdatedNotification{
		Zone:  zone,
		Stack: stack,
		Cards: cards,
	}, "")
	s.scheduleSave(room)
}

func (s *Server) handleZoneDelete(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ZoneDeleteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "zone:delete", "INVALID_ACTION", "Invalid zone:delete payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "zone:delete", err)
		return
	}

	room.mu.Lock()
	deletion := room.Table.DeleteZone(req.ID)
	room.mu.Unlock()
	if deletion == nil {
		s.sendError(socket, ctx, "zone:delete", "NOT_FOUND", "Zone not found")
		return
	}

	s.broadcastToRoom(room, "zone:deleted", ZoneDeletedNotification{
		ZoneID:    deletion.ZoneID,
		StackID:   deletion.StackID,
		Scattered: deletion.Scattered,
	}, "")
	s.saveNow(room)
}

func (s *Server) handleZoneAddCard(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ZoneAddCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "zone:addCard", "INVALID_ACTION", "Invalid zone:addCard payload")
		return
	}
	s.addCardsToZone(socket, ctx, connectionID, "zone:addCard", req.ZoneID, []int{req.CardID})
}

func (s *Server) handleZoneAddCards(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ZoneAddCardsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "zone:addCards", "INVALID_ACTION", "Invalid zone:addCards payload")
		return
	}
	s.addCardsToZone(socket, ctx, connectionID, "zone:addCards", req.ZoneID, req.CardIDs)
}

func (s *Server) addCardsToZone(socket *websocket.Conn, ctx context.Context, connectionID, action string, zoneID int, cardIDs []int) {
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, action, err)
		return
	}

	room.mu.Lock()
	drop := room.Table.AddCardsToZone(zoneID, cardIDs)
	room.mu.Unlock()
	if drop == nil {
		s.sendError(socket, ctx, action, "NOT_FOUND", "Zone or card not found")
		return
	}

	s.broadcastToRoom(room, "zone:cardsAdded", ZoneCardsAddedNotification{
		Zone:         drop.Zone,
		Stack:        drop.Stack,
		Cards:        drop.Cards,
		StackCreated: drop.StackCreated,
	}, "")
	s.scheduleSave(room)
}
