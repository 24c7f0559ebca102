package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabletop-server/internal/table"
)

// Personalized sync must never leak another player's hand cards.
func TestBuildSyncStateHidesOtherHands(t *testing.T) {
	assert := assert.New(t)
	rm, _ := newTestManager(t)
	s := &Server{roomManager: rm}

	room, _, err := rm.CreateRoom(context.Background(), "alice", "Alice", "", "", false)
	require.NoError(t, err)
	_, _, _, err = rm.JoinRoom(context.Background(), "bob", room.Code, "Bob", "")
	require.NoError(t, err)

	room.mu.Lock()
	room.Table.AddCardToHand("alice", 1)
	room.Table.AddCardToHand("alice", 2)
	room.Table.AddCardToHand("bob", 3)
	room.Cursors["bob"] = Cursor{X: 10, Y: 20}
	room.mu.Unlock()

	state := s.buildSyncState(room, "alice")

	seen := make(map[int]bool)
	for _, card := range state.Cards {
		seen[card.ID] = true
	}
	assert.True(seen[1], "own hand cards are included")
	assert.True(seen[2])
	assert.False(seen[3], "other players' hand cards must be excluded")

	assert.Equal([]int{1, 2}, state.YourHand)
	assert.Equal(map[string]int{"alice": 2, "bob": 1}, state.HandCounts)
	assert.Equal(2, len(state.Players))
	assert.Equal(Cursor{X: 10, Y: 20}, state.Cursors["bob"])

	// Bob's view mirrors the asymmetry.
	bobState := s.buildSyncState(room, "bob")
	assert.Equal([]int{3}, bobState.YourHand)
	for _, card := range bobState.Cards {
		assert.NotEqual(1, card.ID)
		assert.NotEqual(2, card.ID)
	}
}

func TestBuildSyncStateIncludesFullGraph(t *testing.T) {
	assert := assert.New(t)
	rm, _ := newTestManager(t)
	s := &Server{roomManager: rm}

	room, _, err := rm.CreateRoom(context.Background(), "alice", "Alice", "", "", false)
	require.NoError(t, err)

	room.mu.Lock()
	room.Table.CreateZone(table.ZoneSpec{W: 100, H: 100})
	room.Locks.Acquire(5, "alice")
	room.mu.Unlock()

	state := s.buildSyncState(room, "alice")

	assert.Equal(room.Code, state.RoomCode)
	assert.Equal(52, len(state.Cards))
	assert.Equal(1, len(state.Stacks))
	assert.Equal(1, len(state.Zones))
	assert.Equal(room.Table.TopZ, state.TopZ)

	// Lock state rides along on the entities.
	for _, card := range state.Cards {
		if card.ID == 5 {
			assert.Equal("alice", card.LockedBy)
		}
	}
}

func TestSplitErrorCode(t *testing.T) {
	code, msg := splitErrorCode(ErrRoomNotFound)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, "room does not exist", msg)

	code, msg = splitErrorCode(context.DeadlineExceeded)
	assert.Equal(t, "INTERNAL_ERROR", code)
	assert.Equal(t, "Internal server error", msg)
}

func TestConnectionManagerRoomTracking(t *testing.T) {
	cm := NewConnectionManager()

	cm.SetRoom("conn1", "ABCDEF")
	assert.Equal(t, "ABCDEF", cm.GetRoom("conn1"))

	cm.SetRoom("conn1", "")
	assert.Empty(t, cm.GetRoom("conn1"))

	cm.SetRoom("conn1", "ABCDEF")
	cm.RemoveConnection("conn1")
	assert.Empty(t, cm.GetRoom("conn1"))
}
