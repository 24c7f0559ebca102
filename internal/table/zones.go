package table

// ZoneSpec carries the initial attributes for a new zone. Zero-value
// visibility and layout fall back to public/stack.
type ZoneSpec struct {
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	W          float64    `json:"w"`
	H          float64    `json:"h"`
	Label      string     `json:"label"`
	FaceUp     bool       `json:"faceUp"`
	Visibility Visibility `json:"visibility"`
	OwnerID    string     `json:"ownerId"`
	Layout     Layout     `json:"layout"`
	Scale      float64    `json:"scale"`
	Spacing    float64    `json:"spacing"`
	Jitter     float64    `json:"jitter"`
}

// ZonePatch is a partial update; nil fields are left alone.
type ZonePatch struct {
	X          *float64    `json:"x"`
	Y          *float64    `json:"y"`
	W          *float64    `json:"w"`
	H          *float64    `json:"h"`
	Label      *string     `json:"label"`
	FaceUp     *bool       `json:"faceUp"`
	Locked     *bool       `json:"locked"`
	Visibility *Visibility `json:"visibility"`
	OwnerID    *string     `json:"ownerId"`
	Layout     *Layout     `json:"layout"`
	Scale      *float64    `json:"scale"`
	Spacing    *float64    `json:"spacing"`
	Jitter     *float64    `json:"jitter"`
}

// ZoneDeletion reports what a zone teardown touched: the scattered cards
// and the resident stack id, if one existed.
type ZoneDeletion struct {
	ZoneID    int     `json:"zoneId"`
	StackID   *int    `json:"stackId,omitempty"`
	Scattered []*Card `json:"scattered"`
}

// ZoneDrop is the result of adding cards to a zone.
type ZoneDrop struct {
	Zone         *Zone   `json:"zone"`
	Stack        *Stack  `json:"stack"`
	Cards        []*Card `json:"cards"`
	StackCreated bool    `json:"stackCreated"`
}

// CreateZone adds a zone rectangle to the table.
func (t *Table) CreateZone(spec ZoneSpec) *Zone {
	zone := &Zone{
		ID:         t.allocID(),
		X:          spec.X,
		Y:          spec.Y,
		W:          spec.W,
		H:          spec.H,
		Label:      spec.Label,
		FaceUp:     spec.FaceUp,
		Visibility: spec.Visibility,
		OwnerID:    spec.OwnerID,
		Layout:     spec.Layout,
		Scale:      spec.Scale,
		Spacing:    spec.Spacing,
		Jitter:     spec.Jitter,
	}
	if zone.Visibility == "" {
		zone.Visibility = VisibilityPublic
	}
	if zone.Layout == "" {
		zone.Layout = LayoutStack
	}
	if zone.Scale == 0 {
		zone.Scale = 1
	}
	t.Zones[zone.ID] = zone
	return zone
}

// UpdateZone applies a partial patch. If the zone moved and owns a stack,
// the stack's anchor is recomputed to the zone's new center and its cards
// repositioned.
func (t *Table) UpdateZone(id int, patch ZonePatch) *Zone {
	zone, ok := t.Zones[id]
	if !ok {
		return nil
	}

	moved := false
	if patch.X != nil && *patch.X != zone.X {
		zone.X = *patch.X
		moved = true
	}
	if patch.Y != nil && *patch.Y != zone.Y {
		zone.Y = *patch.Y
		moved = true
	}
	if patch.W != nil {
		zone.W = *patch.W
	}
	if patch.H != nil {
		zone.H = *patch.H
	}
	if patch.Label != nil {
		zone.Label = *patch.Label
	}
	if patch.FaceUp != nil {
		zone.FaceUp = *patch.FaceUp
	}
	if patch.Locked != nil {
		zone.Locked = *patch.Locked
	}
	if patch.Visibility != nil {
		zone.Visibility = *patch.Visibility
	}
	if patch.OwnerID != nil {
		zone.OwnerID = *patch.OwnerID
	}
	if patch.Layout != nil {
		zone.Layout = *patch.Layout
	}
	if patch.Scale != nil {
		zone.Scale = *patch.Scale
	}
	if patch.Spacing != nil {
		zone.Spacing = *patch.Spacing
	}
	if patch.Jitter != nil {
		zone.Jitter = *patch.Jitter
	}

	if moved && zone.StackID != nil {
		if stack, sok := t.Stacks[*zone.StackID]; sok {
			cx, cy := zone.Center()
			stack.X = cx
			stack.Y = cy
			t.restackCards(stack)
		}
	}
	return zone
}

// DeleteZone removes a zone. Any resident stack's cards are scattered
// around the zone's last center with small random jitter; the stack and
// zone records go away together.
func (t *Table) DeleteZone(id int) *ZoneDeletion {
	zone, ok := t.Zones[id]
	if !ok {
		return nil
	}

	result := &ZoneDeletion{ZoneID: id}
	if zone.StackID != nil {
		stackID := *zone.StackID
		if stack, sok := t.Stacks[stackID]; sok {
			cx, cy := zone.Center()
			members := make([]int, len(stack.CardIDs))
			copy(members, stack.CardIDs)
			for _, cardID := range members {
				card := t.Cards[cardID]
				card.StackID = nil
				t.scatterCard(card, cx, cy)
				result.Scattered = append(result.Scattered, card)
			}
			stack.CardIDs = nil
			delete(t.Stacks, stackID)
		}
		result.StackID = &stackID
	}
	delete(t.Zones, id)
	return result
}

// AddCardToZone drops one card into a zone.
func (t *Table) AddCardToZone(zoneID, cardID int) *ZoneDrop {
	return t.AddCardsToZone(zoneID, []int{cardID})
}

// AddCardsToZone drops cards into a zone, lazily creating the zone's
// stack on the first card. Every added card's orientation is forced to
// the zone's default.
func (t *Table) AddCardsToZone(zoneID int, cardIDs []int) *ZoneDrop {
	zone, ok := t.Zones[zoneID]
	if !ok || len(cardIDs) == 0 {
		return nil
	}
	for _, id := range cardIDs {
		if _, cok := t.Cards[id]; !cok {
			return nil
		}
	}

	drop := &ZoneDrop{Zone: zone}
	var stack *Stack
	if zone.StackID != nil {
		stack = t.Stacks[*zone.StackID]
	}
	if stack == nil {
		cx, cy := zone.Center()
		stack = t.CreateStack(cardIDs, cx, cy, StackZone, &zone.ID)
		zone.StackID = &stack.ID
		drop.StackCreated = true
	} else {
		for _, id := range cardIDs {
			// A card already in the zone's stack stays where it is.
			if card := t.Cards[id]; card.StackID != nil && *card.StackID == stack.ID {
				continue
			}
			t.AddCardToStack(stack.ID, id)
		}
	}

	for _, id := range cardIDs {
		card := t.Cards[id]
		card.FaceUp = zone.FaceUp
		drop.Cards = append(drop.Cards, card)
	}
	drop.Stack = stack
	return drop
}

// Center returns the midpoint of the zone rectangle, which anchors the
// zone's stack.
func (z *Zone) Center() (float64, float64) {
	return z.X + z.W/2, z.Y + z.H/2
}
