package table

import "math/rand/v2"

// StackRemoval is the result of pulling a card out of its stack.
type StackRemoval struct {
	Card         *Card `json:"card"`
	StackID      int   `json:"stackId"`
	StackDeleted bool  `json:"stackDeleted"`
}

// CreateStack builds a new stack from the given cards at the anchor
// position. Cards are detached from any prior stack or hand first. Order
// of cardIDs becomes bottom-to-top, each card getting an offset position
// and a fresh z so the pile renders in order.
func (t *Table) CreateStack(cardIDs []int, x, y float64, kind StackKind, zoneID *int) *Stack {
	if len(cardIDs) == 0 {
		return nil
	}
	// Duplicates would detach the card from the half-built stack mid-loop,
	// so the whole request is rejected along with unknown ids.
	seen := make(map[int]bool, len(cardIDs))
	for _, id := range cardIDs {
		if _, ok := t.Cards[id]; !ok || seen[id] {
			return nil
		}
		seen[id] = true
	}

	stack := &Stack{
		ID:      t.allocID(),
		CardIDs: make([]int, 0, len(cardIDs)),
		X:       x,
		Y:       y,
		Kind:    kind,
		ZoneID:  zoneID,
	}
	t.Stacks[stack.ID] = stack

	for i, id := range cardIDs {
		card := t.Cards[id]
		t.detach(card)
		card.StackID = &stack.ID
		card.X, card.Y = stackedPosition(x, y, i)
		card.Z = t.nextZ()
		stack.CardIDs = append(stack.CardIDs, id)
	}
	return stack
}

// MoveStack repositions a stack and all member cards, bringing the pile to
// the front. When detachFromZone is set and the stack is zone-bound, the
// zone link is severed on both sides first.
func (t *Table) MoveStack(id int, x, y float64, detachFromZone bool) *Stack {
	stack, ok := t.Stacks[id]
	if !ok {
		return nil
	}
	if detachFromZone && stack.Kind == StackZone {
		if stack.ZoneID != nil {
			if zone, zok := t.Zones[*stack.ZoneID]; zok && zone.StackID != nil && *zone.StackID == stack.ID {
				zone.StackID = nil
			}
		}
		stack.ZoneID = nil
		stack.Kind = StackFree
	}
	stack.X = x
	stack.Y = y
	t.restackCards(stack)
	return stack
}

// AddCardToStack places a card on top of an existing stack. Adding a card
// that is already a member is rejected.
func (t *Table) AddCardToStack(stackID, cardID int) *Card {
	stack, ok := t.Stacks[stackID]
	if !ok {
		return nil
	}
	card, ok := t.Cards[cardID]
	if !ok || containsID(stack.CardIDs, cardID) {
		return nil
	}

	t.detach(card)
	card.StackID = &stack.ID
	card.X, card.Y = stackedPosition(stack.X, stack.Y, len(stack.CardIDs))
	card.Z = t.nextZ()
	stack.CardIDs = append(stack.CardIDs, cardID)
	return card
}

// RemoveCardFromStack pulls a card out of its stack to a free position.
// Emptying the stack deletes it (and clears its zone's back-reference).
// A card that is not in any stack yields an absent result.
func (t *Table) RemoveCardFromStack(cardID int, x, y float64) *StackRemoval {
	card, ok := t.Cards[cardID]
	if !ok || card.StackID == nil {
		return nil
	}
	stackID := *card.StackID
	t.detach(card)
	card.X = x
	card.Y = y
	card.Z = t.nextZ()

	_, stillThere := t.Stacks[stackID]
	return &StackRemoval{
		Card:         card,
		StackID:      stackID,
		StackDeleted: !stillThere,
	}
}

// MergeStacks reparents every card of the source stack into the target,
// target's existing order first, then source's. The source stack is
// deleted and its zone association, if any, cleared.
func (t *Table) MergeStacks(srcID, dstID int) *Stack {
	if srcID == dstID {
		return nil
	}
	src, ok := t.Stacks[srcID]
	if !ok {
		return nil
	}
	dst, ok := t.Stacks[dstID]
	if !ok {
		return nil
	}

	moved := make([]int, len(src.CardIDs))
	copy(moved, src.CardIDs)
	for _, id := range moved {
		card := t.Cards[id]
		card.StackID = &dst.ID
		card.X, card.Y = stackedPosition(dst.X, dst.Y, len(dst.CardIDs))
		card.Z = t.nextZ()
		dst.CardIDs = append(dst.CardIDs, id)
	}
	src.CardIDs = src.CardIDs[:0]
	t.deleteStack(src)
	return dst
}

// ShuffleStack permutes the card order in place (Fisher-Yates). The anchor
// position is unchanged; member positions and z are reassigned to match
// the new order. Returns the new bottom-to-top order for broadcast.
func (t *Table) ShuffleStack(id int) []int {
	stack, ok := t.Stacks[id]
	if !ok {
		return nil
	}
	rand.Shuffle(len(stack.CardIDs), func(i, j int) {
		stack.CardIDs[i], stack.CardIDs[j] = stack.CardIDs[j], stack.CardIDs[i]
	})
	t.restackCards(stack)

	order := make([]int, len(stack.CardIDs))
	copy(order, stack.CardIDs)
	return order
}

// FlipStack flips only the top card of the stack, not the whole pile.
func (t *Table) FlipStack(id int) *Card {
	stack, ok := t.Stacks[id]
	if !ok || len(stack.CardIDs) == 0 {
		return nil
	}
	top := t.Cards[stack.CardIDs[len(stack.CardIDs)-1]]
	top.FaceUp = !top.FaceUp
	return top
}

// ReorderStack relocates one card to a target index within its stack.
// Out-of-range indexes are rejected. Returns the new order.
func (t *Table) ReorderStack(stackID, cardID, toIndex int) []int {
	stack, ok := t.Stacks[stackID]
	if !ok {
		return nil
	}
	if !containsID(stack.CardIDs, cardID) {
		return nil
	}
	if toIndex < 0 || toIndex >= len(stack.CardIDs) {
		return nil
	}

	stack.CardIDs = removeID(stack.CardIDs, cardID)
	stack.CardIDs = append(stack.CardIDs, 0)
	copy(stack.CardIDs[toIndex+1:], stack.CardIDs[toIndex:])
	stack.CardIDs[toIndex] = cardID
	t.restackCards(stack)

	order := make([]int, len(stack.CardIDs))
	copy(order, stack.CardIDs)
	return order
}

// restackCards reassigns member positions and z values to match the
// stack's current order and anchor.
func (t *Table) restackCards(stack *Stack) {
	for i, id := range stack.CardIDs {
		card := t.Cards[id]
		card.X, card.Y = stackedPosition(stack.X, stack.Y, i)
		card.Z = t.nextZ()
	}
}
