package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateZoneDefaults(t *testing.T) {
	assert := assert.New(t)
	tbl := New()

	zone := tbl.CreateZone(ZoneSpec{X: 10, Y: 20, W: 100, H: 50, Label: "discard"})

	assert.Equal(VisibilityPublic, zone.Visibility)
	assert.Equal(LayoutStack, zone.Layout)
	assert.Equal(1.0, zone.Scale)
	assert.Nil(zone.StackID)
	assert.False(zone.Locked)

	cx, cy := zone.Center()
	assert.Equal(60.0, cx)
	assert.Equal(45.0, cy)
}

func TestUpdateZonePartialPatch(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{X: 0, Y: 0, W: 100, H: 100, Label: "old"})

	label := "new"
	locked := true
	updated := tbl.UpdateZone(zone.ID, ZonePatch{Label: &label, Locked: &locked})
	require.NotNil(t, updated)

	assert.Equal("new", updated.Label)
	assert.True(updated.Locked)
	// Untouched fields keep their values.
	assert.Equal(100.0, updated.W)
	assert.Equal(VisibilityPublic, updated.Visibility)
}

func TestUpdateZoneMoveRecentersStack(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{X: 0, Y: 0, W: 100, H: 100})
	drop := tbl.AddCardsToZone(zone.ID, freeCards(t, tbl, 2))
	require.NotNil(t, drop)

	x, y := 500.0, 300.0
	tbl.UpdateZone(zone.ID, ZonePatch{X: &x, Y: &y})

	stack := tbl.Stacks[*zone.StackID]
	assert.Equal(550.0, stack.X)
	assert.Equal(350.0, stack.Y)
	px, py := stackedPosition(550, 350, 0)
	assert.Equal(px, tbl.Cards[stack.CardIDs[0]].X)
	assert.Equal(py, tbl.Cards[stack.CardIDs[0]].Y)
}

func TestUpdateZoneUnknown(t *testing.T) {
	tbl := New()
	assert.Nil(t, tbl.UpdateZone(999, ZonePatch{}))
}

func TestDeleteZoneScattersResidentCards(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{X: 100, Y: 100, W: 200, H: 200})
	ids := freeCards(t, tbl, 3)
	drop := tbl.AddCardsToZone(zone.ID, ids)
	require.NotNil(t, drop)
	stackID := drop.Stack.ID

	deletion := tbl.DeleteZone(zone.ID)
	require.NotNil(t, deletion)

	assert.Equal(zone.ID, deletion.ZoneID)
	require.NotNil(t, deletion.StackID)
	assert.Equal(stackID, *deletion.StackID)
	assert.Equal(3, len(deletion.Scattered))

	_, zoneExists := tbl.Zones[zone.ID]
	_, stackExists := tbl.Stacks[stackID]
	assert.False(zoneExists)
	assert.False(stackExists)

	// Cards land loose near the zone's center, within scatter range.
	cx, cy := 200.0, 200.0
	for _, card := range deletion.Scattered {
		assert.Nil(card.StackID)
		assert.LessOrEqual(math.Abs(card.X-cx), scatterRadius)
		assert.LessOrEqual(math.Abs(card.Y-cy), scatterRadius)
	}
}

func TestDeleteEmptyZone(t *testing.T) {
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{W: 50, H: 50})

	deletion := tbl.DeleteZone(zone.ID)
	require.NotNil(t, deletion)
	assert.Nil(t, deletion.StackID)
	assert.Empty(t, deletion.Scattered)
}

func TestAddCardsToZoneCreatesStackLazily(t *testing.T) {
	assert := assert.New(t)
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{X: 0, Y: 0, W: 100, H: 100, FaceUp: true})
	ids := freeCards(t, tbl, 2)

	drop := tbl.AddCardsToZone(zone.ID, ids[:1])
	require.NotNil(t, drop)
	assert.True(drop.StackCreated)
	assert.Equal(StackZone, drop.Stack.Kind)
	require.NotNil(t, drop.Stack.ZoneID)
	assert.Equal(zone.ID, *drop.Stack.ZoneID)
	require.NotNil(t, zone.StackID)
	assert.Equal(drop.Stack.ID, *zone.StackID)

	// Second drop reuses the existing stack.
	second := tbl.AddCardToZone(zone.ID, ids[1])
	require.NotNil(t, second)
	assert.False(second.StackCreated)
	assert.Equal(drop.Stack.ID, second.Stack.ID)
	assert.Equal(2, len(second.Stack.CardIDs))
}

func TestAddCardsToZoneForcesOrientation(t *testing.T) {
	tbl := New()
	faceUpZone := tbl.CreateZone(ZoneSpec{W: 100, H: 100, FaceUp: true})
	ids := freeCards(t, tbl, 1)

	drop := tbl.AddCardsToZone(faceUpZone.ID, ids)
	require.NotNil(t, drop)
	assert.True(t, drop.Cards[0].FaceUp)
}

func TestAddCardsToZoneValidatesAll(t *testing.T) {
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{W: 100, H: 100})
	ids := freeCards(t, tbl, 1)

	assert.Nil(t, tbl.AddCardsToZone(zone.ID, append(ids, 999)))
	assert.Nil(t, zone.StackID)
	assert.Nil(t, tbl.AddCardsToZone(999, ids))
	assert.Nil(t, tbl.AddCardsToZone(zone.ID, nil))
}

func TestAddCardAlreadyInZoneStays(t *testing.T) {
	tbl := New()
	zone := tbl.CreateZone(ZoneSpec{W: 100, H: 100})
	ids := freeCards(t, tbl, 2)
	first := tbl.AddCardsToZone(zone.ID, ids)
	require.NotNil(t, first)

	again := tbl.AddCardToZone(zone.ID, ids[0])
	require.NotNil(t, again)
	// No duplicate membership.
	assert.Equal(t, []int{ids[0], ids[1]}, again.Stack.CardIDs)
}
