package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCardToHandDetachesFromStack(t *testing.T) {
	assert := assert.New(t)
	tbl := New()

	card := tbl.AddCardToHand("alice", 5)
	require.NotNil(t, card)

	assert.Equal("alice", card.OwnerID)
	assert.Nil(card.StackID)
	assert.Equal([]int{5}, tbl.Hands["alice"].CardIDs)

	// The deck stack lost a member.
	for _, s := range tbl.Stacks {
		assert.Equal(DeckSize-1, len(s.CardIDs))
	}
}

func TestAddCardToHandRejections(t *testing.T) {
	tbl := New()
	tbl.AddCardToHand("alice", 5)

	assert.Nil(t, tbl.AddCardToHand("alice", 5)) // already held
	assert.Nil(t, tbl.AddCardToHand("", 6))      // anonymous
	assert.Nil(t, tbl.AddCardToHand("alice", 999))
}

func TestHandTakeoverBetweenPlayers(t *testing.T) {
	tbl := New()
	tbl.AddCardToHand("alice", 5)

	// Taking a card from someone else's hand moves it.
	card := tbl.AddCardToHand("bob", 5)
	require.NotNil(t, card)
	assert.Equal(t, "bob", card.OwnerID)
	assert.Empty(t, tbl.Hands["alice"].CardIDs)
	assert.Equal(t, []int{5}, tbl.Hands["bob"].CardIDs)
}

func TestRemoveCardFromHand(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	tbl.AddCardToHand("alice", 5)

	card := tbl.RemoveCardFromHand("alice", 5, 300, 400, true)
	require.NotNil(t, card)

	assert.Empty(card.OwnerID)
	assert.Equal(300.0, card.X)
	assert.Equal(400.0, card.Y)
	assert.True(card.FaceUp)
	assert.Equal(tbl.TopZ, card.Z)
	assert.Empty(tbl.Hands["alice"].CardIDs)
}

func TestRemoveCardFromHandRejections(t *testing.T) {
	tbl := New()
	tbl.AddCardToHand("alice", 5)

	assert.Nil(t, tbl.RemoveCardFromHand("bob", 5, 0, 0, false))
	assert.Nil(t, tbl.RemoveCardFromHand("alice", 6, 0, 0, false))
}

func TestAddStackToHandPreservesOrder(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	ids := freeCards(t, tbl, 3)
	stack := tbl.CreateStack(ids, 100, 100, StackFree, nil)

	pickup := tbl.AddStackToHand("alice", stack.ID)
	require.NotNil(t, pickup)

	assert.Equal(ids, pickup.CardIDs)
	assert.Equal(ids, tbl.Hands["alice"].CardIDs)
	_, exists := tbl.Stacks[stack.ID]
	assert.False(exists)
	for _, id := range ids {
		assert.Equal("alice", tbl.Cards[id].OwnerID)
		assert.Nil(tbl.Cards[id].StackID)
	}
}

func TestAddZoneStackToHandClearsZone(t *testing.T) {
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{W: 100, H: 100})
	drop := tbl.AddCardsToZone(zone.ID, freeCards(t, tbl, 2))
	require.NotNil(t, drop)

	pickup := tbl.AddStackToHand("alice", drop.Stack.ID)
	require.NotNil(t, pickup)
	assert.Nil(t, tbl.Zones[zone.ID].StackID)
}

func TestReorderHand(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	tbl.AddCardToHand("alice", 1)
	tbl.AddCardToHand("alice", 2)
	tbl.AddCardToHand("alice", 3)

	order := tbl.ReorderHand("alice", 3, 0)
	require.NotNil(t, order)
	assert.Equal([]int{3, 1, 2}, order)

	assert.Nil(tbl.ReorderHand("alice", 1, 3))
	assert.Nil(tbl.ReorderHand("alice", 999, 0))
	assert.Nil(tbl.ReorderHand("bob", 1, 0))
}

func TestTransferHandOwnership(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	tbl.AddCardToHand("conn-old", 1)
	tbl.AddCardToHand("conn-old", 2)

	hand := tbl.TransferHandOwnership("conn-old", "conn-new")
	require.NotNil(t, hand)

	assert.Equal("conn-new", hand.PlayerID)
	assert.Equal([]int{1, 2}, hand.CardIDs)
	assert.Equal("conn-new", tbl.Cards[1].OwnerID)
	assert.Equal("conn-new", tbl.Cards[2].OwnerID)
	_, oldExists := tbl.Hands["conn-old"]
	assert.False(oldExists)
}

func TestTransferHandOwnershipRejections(t *testing.T) {
	tbl := New()
	tbl.AddCardToHand("a", 1)
	tbl.AddCardToHand("b", 2)

	assert.Nil(t, tbl.TransferHandOwnership("a", ""))
	assert.Nil(t, tbl.TransferHandOwnership("a", "a"))
	assert.Nil(t, tbl.TransferHandOwnership("a", "b")) // target taken
	assert.Nil(t, tbl.TransferHandOwnership("ghost", "c"))
}

func TestRemovePlayerScattersHandFaceDown(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	tbl.AddCardToHand("alice", 1)
	tbl.FlipCard(1) // face up in hand
	tbl.AddCardToHand("alice", 2)

	scattered := tbl.RemovePlayer("alice")
	require.Len(t, scattered, 2)

	_, handExists := tbl.Hands["alice"]
	assert.False(handExists)
	for _, card := range scattered {
		assert.Empty(card.OwnerID)
		assert.False(card.FaceUp)
		assert.LessOrEqual(math.Abs(card.X-deckAnchorX), scatterRadius)
		assert.LessOrEqual(math.Abs(card.Y-deckAnchorY), scatterRadius)
	}

	assert.Nil(tbl.RemovePlayer("ghost"))
}

func TestHandCounts(t *testing.T) {
	tbl := New()
	tbl.AddCardToHand("alice", 1)
	tbl.AddCardToHand("alice", 2)
	tbl.AddCardToHand("bob", 3)

	counts := tbl.HandCounts()
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, counts)
}
