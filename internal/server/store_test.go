package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tabletop-server/internal/table"
)

// setupTestStore spins up a throwaway Postgres container. Skipped under
// -short so the rest of the suite runs without Docker.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping store tests in short mode (requires Docker)")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tabletop_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := NewStore(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func testSnapshot(t *testing.T, code string) *RoomSnapshot {
	t.Helper()
	state, err := table.New().Snapshot()
	require.NoError(t, err)
	return &RoomSnapshot{
		Code:       code,
		Name:       "Test Room",
		Public:     true,
		MaxPlayers: 8,
		OwnerName:  "Alice",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Settings:   RoomSettings{Background: "felt"},
		Roster: []PlayerRecord{
			{ID: "conn1", Name: "Alice", Color: "#e6194b", SessionID: "sess-a"},
		},
		State: state,
	}
}

func TestStoreSaveAndLoadRoom(t *testing.T) {
	assert := assert.New(t)
	store := setupTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, "AAAAAA")
	require.NoError(t, store.SaveRoom(ctx, snap))

	loaded, err := store.LoadRoom(ctx, "AAAAAA")
	require.NoError(t, err)

	assert.Equal("Test Room", loaded.Name)
	assert.True(loaded.Public)
	assert.Equal("Alice", loaded.OwnerName)
	assert.Equal("felt", loaded.Settings.Background)
	require.Len(t, loaded.Roster, 1)
	assert.Equal("sess-a", loaded.Roster[0].SessionID)

	restored, err := table.FromSnapshot(loaded.State)
	require.NoError(t, err)
	assert.Equal(table.DeckSize, len(restored.Cards))
}

func TestStoreSaveRoomUpserts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, "BBBBBB")
	require.NoError(t, store.SaveRoom(ctx, snap))

	snap.Name = "Renamed"
	snap.Roster = append(snap.Roster, PlayerRecord{ID: "conn2", Name: "Bob", Color: "#3cb44b", SessionID: "sess-b"})
	require.NoError(t, store.SaveRoom(ctx, snap))

	loaded, err := store.LoadRoom(ctx, "BBBBBB")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.Len(t, loaded.Roster, 2)
}

func TestStoreLoadRoomNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.LoadRoom(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStoreLoadRoomCorruptRoster(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, "CCCCCC")
	require.NoError(t, store.SaveRoom(ctx, snap))

	// Valid JSON, wrong shape: decodes to neither roster nor settings.
	_, err := store.pool.Exec(ctx,
		`UPDATE rooms SET roster = '{"not":"an array"}' WHERE code = $1`, "CCCCCC")
	require.NoError(t, err)

	_, err = store.LoadRoom(ctx, "CCCCCC")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStoreDeleteRoom(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRoom(ctx, testSnapshot(t, "DDDDDD")))
	require.NoError(t, store.AppendChat(ctx, ChatEntry{
		RoomCode: "DDDDDD", PlayerName: "Alice", Message: "hi", SentAt: time.Now(),
	}))

	require.NoError(t, store.DeleteRoom(ctx, "DDDDDD"))

	_, err := store.LoadRoom(ctx, "DDDDDD")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	entries, err := store.LoadChat(ctx, "DDDDDD", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreListPublicRooms(t *testing.T) {
	assert := assert.New(t)
	store := setupTestStore(t)
	ctx := context.Background()

	public := testSnapshot(t, "EEEEEE")
	require.NoError(t, store.SaveRoom(ctx, public))

	private := testSnapshot(t, "FFFFFF")
	private.Public = false
	require.NoError(t, store.SaveRoom(ctx, private))

	listings, err := store.ListPublicRooms(ctx)
	require.NoError(t, err)

	codes := make([]string, 0, len(listings))
	for _, l := range listings {
		codes = append(codes, l.Code)
	}
	assert.Contains(codes, "EEEEEE")
	assert.NotContains(codes, "FFFFFF")

	for _, l := range listings {
		if l.Code == "EEEEEE" {
			assert.Equal(1, l.PlayerCount)
			assert.Equal("Alice", l.OwnerName)
		}
	}
}

func TestStoreChatLog(t *testing.T) {
	assert := assert.New(t)
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, store.AppendChat(ctx, ChatEntry{
			RoomCode:   "GGGGGG",
			PlayerName: "Alice",
			Message:    msg,
			SentAt:     base.Add(time.Duration(i) * time.Second),
		}))
	}

	// Oldest first, trimmed to the most recent entries.
	entries, err := store.LoadChat(ctx, "GGGGGG", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal("second", entries[0].Message)
	assert.Equal("third", entries[1].Message)

	all, err := store.LoadChat(ctx, "GGGGGG", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal("first", all[0].Message)

	// Raw JSON round trip of an entry keeps camelCase keys.
	data, err := json.Marshal(all[0])
	require.NoError(t, err)
	assert.Contains(string(data), `"playerName"`)
}
