// Package table holds the entity graph for one room: cards, stacks, zones
// and per-player hands, plus the mutation API the server dispatches into.
// It performs no I/O and never broadcasts; mutators return structured
// results for the caller to fan out. Invalid ids yield nil results rather
// than errors, and a failed mutator leaves the graph untouched.
package table

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

const (
	// DeckSize is the standard deck dealt to a fresh table.
	DeckSize = 52

	// deckAnchorX/Y is where the starting stack sits on the canvas.
	deckAnchorX = 640.0
	deckAnchorY = 360.0

	// Cards in a stack are offset upward a few pixels per index so the
	// stack reads as a pile. The offset stops growing past the cap so
	// tall stacks stay compact.
	stackOffsetStep = 3.0
	stackDepthCap   = 10

	// scatterRadius bounds the random jitter applied when cards are
	// dumped back onto the table (zone deletion, player removal).
	scatterRadius = 60.0
)

type StackKind string

const (
	StackFree StackKind = "free"
	StackZone StackKind = "zone"
)

type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityOwner  Visibility = "owner"
	VisibilityHidden Visibility = "hidden"
)

type Layout string

const (
	LayoutStack  Layout = "stack"
	LayoutRow    Layout = "row"
	LayoutColumn Layout = "column"
	LayoutGrid   Layout = "grid"
	LayoutFan    Layout = "fan"
	LayoutCircle Layout = "circle"
)

// Card is one manipulable card. Col/Row are sprite-sheet coordinates and
// carry no game meaning. A card is in at most one of {a stack, a hand}:
// StackID set means stacked, OwnerID set means held in that player's hand.
type Card struct {
	ID       int     `json:"id"`
	Col      int     `json:"col"`
	Row      int     `json:"row"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        int     `json:"z"`
	FaceUp   bool    `json:"faceUp"`
	StackID  *int    `json:"stackId"`
	OwnerID  string  `json:"ownerId,omitempty"`
	LockedBy string  `json:"lockedBy,omitempty"`
}

// Stack is an ordered pile of cards, bottom first. The last element is the
// top card. Every member card's StackID points back at the stack.
type Stack struct {
	ID       int       `json:"id"`
	CardIDs  []int     `json:"cardIds"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Kind     StackKind `json:"kind"`
	ZoneID   *int      `json:"zoneId,omitempty"`
	LockedBy string    `json:"lockedBy,omitempty"`
}

// Zone is a labeled rectangle that can own a stack. When it does, the link
// is bidirectional: zone.StackID = S and S.ZoneID = zone.ID.
type Zone struct {
	ID         int        `json:"id"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	W          float64    `json:"w"`
	H          float64    `json:"h"`
	Label      string     `json:"label"`
	FaceUp     bool       `json:"faceUp"`
	Locked     bool       `json:"locked"`
	StackID    *int       `json:"stackId"`
	Visibility Visibility `json:"visibility"`
	OwnerID    string     `json:"ownerId,omitempty"`
	Layout     Layout     `json:"layout"`
	Scale      float64    `json:"scale"`
	Spacing    float64    `json:"spacing"`
	Jitter     float64    `json:"jitter"`
}

// Hand is a player's private ordered card list. Other clients only ever
// see the count.
type Hand struct {
	PlayerID string `json:"playerId"`
	CardIDs  []int  `json:"cardIds"`
}

// Table is the full entity graph for one room. Cards, stacks and zones
// share a single id namespace so lock keys are unambiguous. TopZ is the
// monotonically increasing render-order counter; it is the sole source of
// z values and never derived from ids or array positions.
type Table struct {
	Cards  map[int]*Card    `json:"cards"`
	Stacks map[int]*Stack   `json:"stacks"`
	Zones  map[int]*Zone    `json:"zones"`
	Hands  map[string]*Hand `json:"hands"`
	NextID int              `json:"nextId"`
	TopZ   int              `json:"topZ"`
}

// New builds a fresh table with the default layout: a full deck as a
// single face-down stack at a fixed anchor. Card 0 ends up at the lowest
// z, card 51 at the highest.
func New() *Table {
	t := &Table{
		Cards:  make(map[int]*Card),
		Stacks: make(map[int]*Stack),
		Zones:  make(map[int]*Zone),
		Hands:  make(map[string]*Hand),
	}
	t.dealDefaultDeck()
	return t
}

// FromSnapshot restores a table from a serialized snapshot. Held locks are
// never persisted, so any stale LockedBy markers are cleared on load.
func FromSnapshot(raw []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode table snapshot: %w", err)
	}
	if t.Cards == nil {
		t.Cards = make(map[int]*Card)
	}
	if t.Stacks == nil {
		t.Stacks = make(map[int]*Stack)
	}
	if t.Zones == nil {
		t.Zones = make(map[int]*Zone)
	}
	if t.Hands == nil {
		t.Hands = make(map[string]*Hand)
	}
	for _, c := range t.Cards {
		c.LockedBy = ""
	}
	for _, s := range t.Stacks {
		s.LockedBy = ""
	}
	return &t, nil
}

// Snapshot serializes the entire graph for persistence.
func (t *Table) Snapshot() ([]byte, error) {
	return json.Marshal(t)
}

// Reset returns the table to the default layout, discarding every card,
// stack, zone and hand.
func (t *Table) Reset() {
	t.Cards = make(map[int]*Card)
	t.Stacks = make(map[int]*Stack)
	t.Zones = make(map[int]*Zone)
	t.Hands = make(map[string]*Hand)
	t.NextID = 0
	t.TopZ = 0
	t.dealDefaultDeck()
}

func (t *Table) dealDefaultDeck() {
	ids := make([]int, 0, DeckSize)
	for i := 0; i < DeckSize; i++ {
		card := &Card{
			ID:  t.allocID(),
			Col: i % 13,
			Row: i / 13,
		}
		t.Cards[card.ID] = card
		ids = append(ids, card.ID)
	}
	t.CreateStack(ids, deckAnchorX, deckAnchorY, StackFree, nil)
}

func (t *Table) allocID() int {
	id := t.NextID
	t.NextID++
	return id
}

func (t *Table) nextZ() int {
	t.TopZ++
	return t.TopZ
}

// CardMove is the delta broadcast after a card reposition.
type CardMove struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  int     `json:"z"`
}

// MoveCard repositions a card and brings it to the front. No ownership or
// lock check happens here; locks are advisory and enforced nowhere in the
// mutation layer.
func (t *Table) MoveCard(id int, x, y float64) *CardMove {
	card, ok := t.Cards[id]
	if !ok {
		return nil
	}
	card.X = x
	card.Y = y
	card.Z = t.nextZ()
	return &CardMove{ID: id, X: x, Y: y, Z: card.Z}
}

// FlipCard toggles a card's orientation and returns it.
func (t *Table) FlipCard(id int) *Card {
	card, ok := t.Cards[id]
	if !ok {
		return nil
	}
	card.FaceUp = !card.FaceUp
	return card
}

// detach removes a card from its stack and from any hand, leaving it free.
// Emptied stacks are deleted along with their zone back-reference.
func (t *Table) detach(card *Card) {
	if card.StackID != nil {
		if stack, ok := t.Stacks[*card.StackID]; ok {
			stack.CardIDs = removeID(stack.CardIDs, card.ID)
			if len(stack.CardIDs) == 0 {
				t.deleteStack(stack)
			}
		}
		card.StackID = nil
	}
	if card.OwnerID != "" {
		if hand, ok := t.Hands[card.OwnerID]; ok {
			hand.CardIDs = removeID(hand.CardIDs, card.ID)
		}
		card.OwnerID = ""
	}
}

// deleteStack drops a stack record and clears the owning zone's
// back-reference if the stack was zone-bound. Member cards are not
// touched; callers detach them first.
func (t *Table) deleteStack(stack *Stack) {
	if stack.ZoneID != nil {
		if zone, ok := t.Zones[*stack.ZoneID]; ok && zone.StackID != nil && *zone.StackID == stack.ID {
			zone.StackID = nil
		}
	}
	delete(t.Stacks, stack.ID)
}

// scatterCard drops a card loose on the table near (x, y) with random
// jitter and a fresh z.
func (t *Table) scatterCard(card *Card, x, y float64) {
	card.X = x + (rand.Float64()*2-1)*scatterRadius
	card.Y = y + (rand.Float64()*2-1)*scatterRadius
	card.Z = t.nextZ()
}

// stackedPosition computes the canvas position of a stack member at the
// given index, applying the capped pile offset.
func stackedPosition(x, y float64, index int) (float64, float64) {
	depth := index
	if depth > stackDepthCap {
		depth = stackDepthCap
	}
	return x, y - float64(depth)*stackOffsetStep
}

func removeID(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
