package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"
)

// Hand traffic is asymmetric: the owner receives their full ordered hand,
// everyone else only the count (plus whatever the table-side effect was).

func (s *Server) handleHandAddCard(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req HandAddCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "hand:addCard", "INVALID_ACTION", "Invalid hand:addCard payload")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "hand:addCard", err)
		return
	}

	room.mu.Lock()
	card := room.Table.AddCardToHand(player.ID, req.CardID)
	var handIDs []int
	var count int
	if card != nil {
		handIDs, count = handState(room, player.ID)
	}
	room.mu.Unlock()
	if card == nil {
		s.sendError(socket, ctx, "hand:addCard", "NOT_FOUND", "Card not found or already in your hand")
		return
	}

	s.sendHandUpdate(socket, ctx, connectionID, handIDs)
	s.broadcastToRoom(room, "hand:cardTaken", HandCardTakenNotification{
		PlayerID: player.ID,
		CardID:   card.ID,
		Count:    count,
	}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleHandRemoveCard(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req HandRemoveCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "hand:removeCard", "INVALID_ACTION", "Invalid hand:removeCard payload")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "hand:removeCard", err)
		return
	}

	room.mu.Lock()
	card := room.Table.RemoveCardFromHand(player.ID, req.CardID, req.X, req.Y, req.FaceUp)
	var handIDs []int
	var count int
	if card != nil {
		handIDs, count = handState(room, player.ID)
	}
	room.mu.Unlock()
	if card == nil {
		s.sendError(socket, ctx, "hand:removeCard", "NOT_FOUND", "Card is not in your hand")
		return
	}

	s.sendHandUpdate(socket, ctx, connectionID, handIDs)
	s.broadcastToRoom(room, "hand:cardRemoved", HandCardRemovedNotification{
		PlayerID: player.ID,
		Count:    count,
		Card:     card,
	}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleHandAddStack(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req HandAddStackRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "hand:addStack", "INVALID_ACTION", "Invalid hand:addStack payload")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "hand:addStack", err)
		return
	}

	room.mu.Lock()
	pickup := room.Table.AddStackToHand(player.ID, req.StackID)
	var handIDs []int
	var count int
	if pickup != nil {
		handIDs, count = handState(room, player.ID)
	}
	room.mu.Unlock()
	if pickup == nil {
		s.sendError(socket, ctx, "hand:addStack", "NOT_FOUND", "Stack not found")
		return
	}

	s.sendHandUpdate(socket, ctx, connectionID, handIDs)
	s.broadcastToRoom(room, "hand:stackPickedUp", HandStackPickedUpNotification{
		PlayerID: player.ID,
		StackID:  pickup.StackID,
		Count:    count,
	}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleHandReorder(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req HandReorderRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "hand:reorder", "INVALID_ACTION", "Invalid hand:reorder payload")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "hand:reorder", err)
		return
	}

	room.mu.Lock()
	order := room.Table.ReorderHand(player.ID, req.CardID, req.ToIndex)
	room.mu.Unlock()
	if order == nil {
		s.sendError(socket, ctx, "hand:reorder", "INVALID_ACTION", "Invalid hand reorder")
		return
	}

	// Hand order is private; nothing to broadcast.
	s.sendHandUpdate(socket, ctx, connectionID, order)
	s.scheduleSave(room)
}

func (s *Server) sendHandUpdate(socket *websocket.Conn, ctx context.Context, connectionID string, cardIDs []int) {
	if cardIDs == nil {
		cardIDs = []int{}
	}
	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type:    "hand:updated",
		Payload: HandUpdateResponse{CardIDs: cardIDs},
	}); err != nil {
		log.Printf("Failed to send hand:updated to %s: %v", connectionID, err)
	}
}

// handState copies a player's current hand order and count. Callers hold
// the room lock.
func handState(room *Room, playerID string) ([]int, int) {
	hand, ok := room.Table.Hands[playerID]
	if !ok {
		return nil, 0
	}
	ids := make([]int, len(hand.CardIDs))
	copy(ids, hand.CardIDs)
	return ids, len(ids)
}
