package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDealsFullDeck(t *testing.T) {
	assert := assert.New(t)
	tbl := New()

	assert.Equal(DeckSize, len(tbl.Cards))
	assert.Equal(1, len(tbl.Stacks))
	assert.Equal(0, len(tbl.Zones))
	assert.Equal(0, len(tbl.Hands))

	var deck *Stack
	for _, s := range tbl.Stacks {
		deck = s
	}
	require.NotNil(t, deck)
	assert.Equal(DeckSize, len(deck.CardIDs))
	assert.Equal(StackFree, deck.Kind)
	assert.Equal(deckAnchorX, deck.X)
	assert.Equal(deckAnchorY, deck.Y)

	// Every card face down and pointing back at the deck stack.
	for _, c := range tbl.Cards {
		assert.False(c.FaceUp)
		require.NotNil(t, c.StackID)
		assert.Equal(deck.ID, *c.StackID)
	}
}

func TestNewSpriteCoordinates(t *testing.T) {
	tbl := New()

	// Card ids 0..51 map to a 13x4 sprite sheet.
	assert.Equal(t, 0, tbl.Cards[0].Col)
	assert.Equal(t, 0, tbl.Cards[0].Row)
	assert.Equal(t, 12, tbl.Cards[12].Col)
	assert.Equal(t, 0, tbl.Cards[12].Row)
	assert.Equal(t, 0, tbl.Cards[13].Col)
	assert.Equal(t, 1, tbl.Cards[13].Row)
	assert.Equal(t, 12, tbl.Cards[51].Col)
	assert.Equal(t, 3, tbl.Cards[51].Row)
}

func TestNewZOrderFollowsDeckOrder(t *testing.T) {
	tbl := New()

	for i := 1; i < DeckSize; i++ {
		assert.Greater(t, tbl.Cards[i].Z, tbl.Cards[i-1].Z)
	}
	assert.Equal(t, tbl.Cards[DeckSize-1].Z, tbl.TopZ)
}

func TestMoveCardBringsToFront(t *testing.T) {
	assert := assert.New(t)
	tbl := New()

	topBefore := tbl.TopZ
	move := tbl.MoveCard(5, 100, 200)

	assert.NotNil(move)
	assert.Equal(100.0, tbl.Cards[5].X)
	assert.Equal(200.0, tbl.Cards[5].Y)
	assert.Greater(tbl.Cards[5].Z, topBefore)
	assert.Equal(tbl.Cards[5].Z, move.Z)

	// Moving does not detach; advisory locks live elsewhere.
	assert.NotNil(tbl.Cards[5].StackID)
}

func TestSequentialMovesStackZOrder(t *testing.T) {
	tbl := New()

	// Each successive move lands strictly above everything moved before it.
	moved := []int{3, 17, 42, 8, 25}
	for _, id := range moved {
		require.NotNil(t, tbl.MoveCard(id, 0, 0))
	}
	for i := 1; i < len(moved); i++ {
		assert.Greater(t, tbl.Cards[moved[i]].Z, tbl.Cards[moved[i-1]].Z)
	}
	assert.Equal(t, tbl.Cards[moved[len(moved)-1]].Z, tbl.TopZ)
}

func TestMoveCardUnknownID(t *testing.T) {
	tbl := New()
	assert.Nil(t, tbl.MoveCard(999, 1, 1))
}

func TestFlipCardToggles(t *testing.T) {
	tbl := New()

	card := tbl.FlipCard(7)
	assert.True(t, card.FaceUp)
	card = tbl.FlipCard(7)
	assert.False(t, card.FaceUp)
	assert.Nil(t, tbl.FlipCard(999))
}

func TestResetRestoresDefaultLayout(t *testing.T) {
	assert := assert.New(t)
	tbl := New()

	tbl.MoveCard(3, 10, 10)
	tbl.CreateZone(ZoneSpec{X: 0, Y: 0, W: 100, H: 100})
	tbl.AddCardToHand("p1", 4)

	tbl.Reset()

	assert.Equal(DeckSize, len(tbl.Cards))
	assert.Equal(1, len(tbl.Stacks))
	assert.Equal(0, len(tbl.Zones))
	assert.Equal(0, len(tbl.Hands))
	assert.Equal(DeckSize-1, tbl.Cards[DeckSize-1].ID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	assert := assert.New(t)
	tbl := New()

	tbl.MoveCard(10, 55, 66)
	tbl.FlipCard(10)
	tbl.CreateZone(ZoneSpec{X: 5, Y: 5, W: 50, H: 50, Label: "discard"})
	tbl.AddCardToHand("alice", 20)

	raw, err := tbl.Snapshot()
	assert.NoError(err)

	restored, err := FromSnapshot(raw)
	assert.NoError(err)

	assert.Equal(len(tbl.Cards), len(restored.Cards))
	assert.Equal(len(tbl.Stacks), len(restored.Stacks))
	assert.Equal(len(tbl.Zones), len(restored.Zones))
	assert.Equal(tbl.NextID, restored.NextID)
	assert.Equal(tbl.TopZ, restored.TopZ)
	assert.Equal(55.0, restored.Cards[10].X)
	assert.True(restored.Cards[10].FaceUp)
	assert.Equal("alice", restored.Cards[20].OwnerID)
	assert.Equal([]int{20}, restored.Hands["alice"].CardIDs)
}

func TestFromSnapshotClearsStaleLocks(t *testing.T) {
	tbl := New()
	locks := NewLockTracker(tbl)
	locks.Acquire(3, "p1")

	raw, err := tbl.Snapshot()
	assert.NoError(t, err)

	restored, err := FromSnapshot(raw)
	assert.NoError(t, err)
	assert.Empty(t, restored.Cards[3].LockedBy)
}

func TestFromSnapshotRejectsGarbage(t *testing.T) {
	_, err := FromSnapshot([]byte("not json"))
	assert.Error(t, err)
}

func TestIDNamespaceIsShared(t *testing.T) {
	tbl := New()

	zone := tbl.CreateZone(ZoneSpec{W: 10, H: 10})
	stack := tbl.CreateStack([]int{1, 2}, 0, 0, StackFree, nil)

	// Cards took 0..51, the deck stack 52; new entities keep counting.
	assert.Greater(t, zone.ID, DeckSize)
	assert.NotEqual(t, zone.ID, stack.ID)
	_, cardClash := tbl.Cards[zone.ID]
	assert.False(t, cardClash)
}
