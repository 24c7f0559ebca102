package table

// handFor returns the player's hand, creating an empty one on first use.
func (t *Table) handFor(playerID string) *Hand {
	hand, ok := t.Hands[playerID]
	if !ok {
		hand = &Hand{PlayerID: playerID}
		t.Hands[playerID] = hand
	}
	return hand
}

// AddCardToHand moves a card into a player's hand, detaching it from any
// stack first.
func (t *Table) AddCardToHand(playerID string, cardID int) *Card {
	if playerID == "" {
		return nil
	}
	card, ok := t.Cards[cardID]
	if !ok {
		return nil
	}
	if card.OwnerID == playerID {
		return nil
	}

	t.detach(card)
	card.OwnerID = playerID
	hand := t.handFor(playerID)
	hand.CardIDs = append(hand.CardIDs, cardID)
	return card
}

// RemoveCardFromHand returns a card from a hand to the table at an
// explicit position and orientation.
func (t *Table) RemoveCardFromHand(playerID string, cardID int, x, y float64, faceUp bool) *Card {
	hand, ok := t.Hands[playerID]
	if !ok {
		return nil
	}
	card, cok := t.Cards[cardID]
	if !cok || !containsID(hand.CardIDs, cardID) {
		return nil
	}

	hand.CardIDs = removeID(hand.CardIDs, cardID)
	card.OwnerID = ""
	card.X = x
	card.Y = y
	card.FaceUp = faceUp
	card.Z = t.nextZ()
	return card
}

// HandStackPickup reports a whole stack moved into a hand.
type HandStackPickup struct {
	PlayerID string `json:"playerId"`
	StackID  int    `json:"stackId"`
	CardIDs  []int  `json:"cardIds"`
}

// AddStackToHand moves every card of a stack into a player's hand,
// bottom-to-top order preserved, and deletes the stack.
func (t *Table) AddStackToHand(playerID string, stackID int) *HandStackPickup {
	if playerID == "" {
		return nil
	}
	stack, ok := t.Stacks[stackID]
	if !ok {
		return nil
	}

	moved := make([]int, len(stack.CardIDs))
	copy(moved, stack.CardIDs)
	hand := t.handFor(playerID)
	for _, id := range moved {
		card := t.Cards[id]
		card.StackID = nil
		card.OwnerID = playerID
		hand.CardIDs = append(hand.CardIDs, id)
	}
	stack.CardIDs = nil
	t.deleteStack(stack)

	return &HandStackPickup{PlayerID: playerID, StackID: stackID, CardIDs: moved}
}

// ReorderHand relocates one card to a target index within a hand.
// Out-of-range indexes are rejected. Returns the new order.
func (t *Table) ReorderHand(playerID string, cardID, toIndex int) []int {
	hand, ok := t.Hands[playerID]
	if !ok {
		return nil
	}
	if !containsID(hand.CardIDs, cardID) {
		return nil
	}
	if toIndex < 0 || toIndex >= len(hand.CardIDs) {
		return nil
	}

	hand.CardIDs = removeID(hand.CardIDs, cardID)
	hand.CardIDs = append(hand.CardIDs, 0)
	copy(hand.CardIDs[toIndex+1:], hand.CardIDs[toIndex:])
	hand.CardIDs[toIndex] = cardID

	order := make([]int, len(hand.CardIDs))
	copy(order, hand.CardIDs)
	return order
}

// TransferHandOwnership renames a hand's owner and every contained
// card's OwnerID. Used when a reconnecting player gets a new connection
// id. Transferring onto an id that already holds a hand is rejected.
func (t *Table) TransferHandOwnership(oldID, newID string) *Hand {
	if newID == "" || oldID == newID {
		return nil
	}
	hand, ok := t.Hands[oldID]
	if !ok {
		return nil
	}
	if _, taken := t.Hands[newID]; taken {
		return nil
	}

	delete(t.Hands, oldID)
	hand.PlayerID = newID
	t.Hands[newID] = hand
	for _, id := range hand.CardIDs {
		t.Cards[id].OwnerID = newID
	}
	return hand
}

// RemovePlayer empties a player's hand back onto the table with scatter
// jitter and removes the hand record. Returns the scattered cards.
func (t *Table) RemovePlayer(playerID string) []*Card {
	hand, ok := t.Hands[playerID]
	if !ok {
		return nil
	}

	var scattered []*Card
	for _, id := range hand.CardIDs {
		card := t.Cards[id]
		card.OwnerID = ""
		card.FaceUp = false
		t.scatterCard(card, deckAnchorX, deckAnchorY)
		scattered = append(scattered, card)
	}
	delete(t.Hands, playerID)
	return scattered
}

// HandCounts returns every hand's size, keyed by player id. This is what
// non-owners see of other players' hands.
func (t *Table) HandCounts() map[string]int {
	counts := make(map[string]int, len(t.Hands))
	for id, hand := range t.Hands {
		counts[id] = len(hand.CardIDs)
	}
	return counts
}
