package server

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"

	"tabletop-server/internal/table"
)

func (s *Server) handleCardMove(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CardMoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "card:move", "INVALID_ACTION", "Invalid card:move payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "card:move", err)
		return
	}

	room.mu.Lock()
	move := room.Table.MoveCard(req.ID, req.X, req.Y)
	room.mu.Unlock()
	if move == nil {
		s.sendError(socket, ctx, "card:move", "NOT_FOUND", "Card not found")
		return
	}

	s.broadcastToRoom(room, "card:moved", move, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleCardFlip(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CardFlipRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "card:flip", "INVALID_ACTION", "Invalid card:flip payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "card:flip", err)
		return
	}

	room.mu.Lock()
	card := room.Table.FlipCard(req.ID)
	room.mu.Unlock()
	if card == nil {
		s.sendError(socket, ctx, "card:flip", "NOT_FOUND", "Card not found")
		return
	}

	s.broadcastToRoom(room, "card:flipped", card, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleLockAcquire(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req LockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "lock:acquire", "INVALID_ACTION", "Invalid lock:acquire payload")
		return
	}
	room, player, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "lock:acquire", err)
		return
	}

	room.mu.Lock()
	ok := room.Locks.Acquire(req.ID, player.ID)
	room.mu.Unlock()
	if !ok {
		s.sendError(socket, ctx, "lock:acquire", "NOT_FOUND", "No lockable object with that id")
		return
	}

	// Locks are advisory render state, never persisted: no save here.
	s.broadcastToRoom(room, "lock:acquired", LockNotification{ID: req.ID, PlayerID: player.ID}, connectionID)
}

func (s *Server) handleLockRelease(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req LockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "lock:release", "INVALID_ACTION", "Invalid lock:release payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "lock:release", err)
		return
	}

	room.mu.Lock()
	room.Locks.Release(req.ID)
	room.mu.Unlock()

	s.broadcastToRoom(room, "lock:released", LockNotification{ID: req.ID}, connectionID)
}

func (s *Server) handleStackCreate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackCreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:create", "INVALID_ACTION", "Invalid stack:create payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:create", err)
		return
	}

	room.mu.Lock()
	stack := room.Table.CreateStack(req.CardIDs, req.X, req.Y, table.StackFree, nil)
	var cards []*table.Card
	if stack != nil {
		cards = memberCards(room.Table, stack)
	}
	room.mu.Unlock()
	if stack == nil {
		s.sendError(socket, ctx, "stack:create", "NOT_FOUND", "One or more cards not found")
		return
	}

	s.broadcastToRoom(room, "stack:created", StackMovedNotification{Stack: stack, Cards: cards}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleStackMove(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackMoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:move", "INVALID_ACTION", "Invalid stack:move payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:move", err)
		return
	}

	room.mu.Lock()
	stack := room.Table.MoveStack(req.ID, req.X, req.Y, req.DetachFromZone)
	var cards []*table.Card
	if stack != nil {
		cards = memberCards(room.Table, stack)
	}
	room.mu.Unlock()
	if stack == nil {
		s.sendError(socket, ctx, "stack:move", "NOT_FOUND", "Stack not found")
		return
	}

	s.broadcastToRoom(room, "stack:moved", StackMovedNotification{Stack: stack, Cards: cards}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleStackAddCard(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:addCard", "INVALID_ACTION", "Invalid stack:addCard payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:addCard", err)
		return
	}

	room.mu.Lock()
	card := room.Table.AddCardToStack(req.StackID, req.CardID)
	room.mu.Unlock()
	if card == nil {
		s.sendError(socket, ctx, "stack:addCard", "NOT_FOUND", "Stack or card not found")
		return
	}

	s.broadcastToRoom(room, "stack:cardAdded", StackCardAddedNotification{StackID: req.StackID, Card: card}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleStackRemoveCard(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackRemoveCardRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:removeCard", "INVALID_ACTION", "Invalid stack:removeCard payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:removeCard", err)
		return
	}

	room.mu.Lock()
	removal := room.Table.RemoveCardFromStack(req.CardID, req.X, req.Y)
	room.mu.Unlock()
	if removal == nil {
		// Pulling a card that is not stacked is a no-op, not an error.
		return
	}

	s.broadcastToRoom(room, "stack:cardRemoved", removal, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleStackMerge(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackMergeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:merge", "INVALID_ACTION", "Invalid stack:merge payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:merge", err)
		return
	}

	room.mu.Lock()
	target := room.Table.MergeStacks(req.SourceID, req.TargetID)
	var cards []*table.Card
	if target != nil {
		cards = memberCards(room.Table, target)
	}
	room.mu.Unlock()
	if target == nil {
		s.sendError(socket, ctx, "stack:merge", "NOT_FOUND", "Source or target stack not found")
		return
	}

	s.broadcastToRoom(room, "stack:merged", StackMergedNotification{
		SourceID: req.SourceID,
		Target:   target,
		Cards:    cards,
	}, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleStackShuffle(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackShuffleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:shuffle", "INVALID_ACTION", "Invalid stack:shuffle payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:shuffle", err)
		return
	}

	room.mu.Lock()
	order := room.Table.ShuffleStack(req.ID)
	var stack *table.Stack
	var cards []*table.Card
	if order != nil {
		stack = room.Table.Stacks[req.ID]
		cards = memberCards(room.Table, stack)
	}
	room.mu.Unlock()
	if order == nil {
		s.sendError(socket, ctx, "stack:shuffle", "NOT_FOUND", "Stack not found")
		return
	}

	// The shuffler sees the result too; everyone gets the same order.
	s.broadcastToRoom(room, "stack:shuffled", StackShuffledNotification{Stack: stack, Cards: cards}, "")
	s.scheduleSave(room)
}

func (s *Server) handleStackFlip(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackShuffleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:flip", "INVALID_ACTION", "Invalid stack:flip payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:flip", err)
		return
	}

	room.mu.Lock()
	top := room.Table.FlipStack(req.ID)
	room.mu.Unlock()
	if top == nil {
		s.sendError(socket, ctx, "stack:flip", "NOT_FOUND", "Stack not found")
		return
	}

	s.broadcastToRoom(room, "stack:flipped", top, connectionID)
	s.scheduleSave(room)
}

func (s *Server) handleStackReorder(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StackReorderRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "stack:reorder", "INVALID_ACTION", "Invalid stack:reorder payload")
		return
	}
	room, _, err := s.roomAndPlayer(connectionID)
	if err != nil {
		s.sendErr(socket, ctx, "stack:reorder", err)
		return
	}

	room.mu.Lock()
	order := room.Table.ReorderStack(req.ID, req.CardID, req.ToIndex)
	var stack *table.Stack
	var cards []*table.Card
	if order != nil {
		stack = room.Table.Stacks[req.ID]
		cards = memberCards(room.Table, stack)
	}
	room.mu.Unlock()
	if order == nil {
		s.sendError(socket, ctx, "stack:reorder", "INVALID_ACTION", "Invalid stack reorder")
		return
	}

	s.broadcastToRoom(room, "stack:reordered", StackShuffledNotification{Stack: stack, Cards: cards}, connectionID)
	s.scheduleSave(room)
}

// memberCards resolves a stack's card records, bottom-to-top. Callers
// hold the room lock.
func memberCards(t *table.Table, stack *table.Stack) []*table.Card {
	cards := make([]*table.Card, 0, len(stack.CardIDs))
	for _, id := range stack.CardIDs {
		cards = append(cards, t.Cards[id])
	}
	return cards
}
