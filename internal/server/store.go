package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRoomNotFound covers unknown codes and snapshots too corrupt to load.
// Corrupt rows are deliberately indistinguishable from missing ones.
var ErrRoomNotFound = errors.New("NOT_FOUND: room does not exist")

// RoomSettings are the client-visible knobs persisted with a room.
type RoomSettings struct {
	Background string `json:"background"`
	Music      string `json:"music"`
}

// PlayerRecord is the persisted identity of a room member. Session ids
// are stored so a player can rejoin a room that was evicted from memory.
type PlayerRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SessionID string `json:"sessionId"`
}

// RoomSnapshot is one durable record per room: metadata plus the
// serialized entity graph.
type RoomSnapshot struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Public     bool            `json:"public"`
	MaxPlayers int             `json:"maxPlayers"`
	OwnerName  string          `json:"ownerName"`
	CreatedAt  time.Time       `json:"createdAt"`
	Settings   RoomSettings    `json:"settings"`
	Roster     []PlayerRecord  `json:"roster"`
	State      json.RawMessage `json:"state"`
}

// RoomListing is one row of the public room list.
type RoomListing struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	OwnerName   string    `json:"ownerName"`
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatEntry is one line of a room's append-only chat log.
type ChatEntry struct {
	RoomCode   string    `json:"roomCode"`
	PlayerName string    `json:"playerName"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sentAt"`
}

// SnapshotWriter is the narrow surface the save scheduler needs.
type SnapshotWriter interface {
	SaveRoom(ctx context.Context, snap *RoomSnapshot) error
}

// RoomStore is everything the room manager needs from durable storage.
type RoomStore interface {
	SnapshotWriter
	LoadRoom(ctx context.Context, code string) (*RoomSnapshot, error)
	DeleteRoom(ctx context.Context, code string) error
	ListPublicRooms(ctx context.Context) ([]RoomListing, error)
	AppendChat(ctx context.Context, entry ChatEntry) error
	LoadChat(ctx context.Context, code string, limit int) ([]ChatEntry, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	public      BOOLEAN NOT NULL,
	max_players INTEGER NOT NULL,
	owner_name  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	settings    JSONB NOT NULL,
	roster      JSONB NOT NULL,
	state       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id          BIGSERIAL PRIMARY KEY,
	room_code   TEXT NOT NULL,
	player_name TEXT NOT NULL,
	message     TEXT NOT NULL,
	sent_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS chat_messages_room_idx
	ON chat_messages (room_code, sent_at);
`

// Store persists room snapshots and chat logs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects, verifies the connection and ensures the schema.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (st *Store) Close() {
	st.pool.Close()
}

// SaveRoom upserts the full snapshot for a room code.
func (st *Store) SaveRoom(ctx context.Context, snap *RoomSnapshot) error {
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings for %s: %w", snap.Code, err)
	}
	roster, err := json.Marshal(snap.Roster)
	if err != nil {
		return fmt.Errorf("failed to serialize roster for %s: %w", snap.Code, err)
	}

	query := `
		INSERT INTO rooms (code, name, public, max_players, owner_name, created_at, updated_at, settings, roster, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			public = EXCLUDED.public,
			max_players = EXCLUDED.max_players,
			owner_name = EXCLUDED.owner_name,
			updated_at = EXCLUDED.updated_at,
			settings = EXCLUDED.settings,
			roster = EXCLUDED.roster,
			state = EXCLUDED.state
	`

	_, err = st.pool.Exec(ctx, query,
		snap.Code,
		snap.Name,
		snap.Public,
		snap.MaxPlayers,
		snap.OwnerName,
		snap.CreatedAt,
		time.Now(),
		settings,
		roster,
		snap.State,
	)
	if err != nil {
		return fmt.Errorf("failed to save room %s: %w", snap.Code, err)
	}
	return nil
}

// LoadRoom retrieves a snapshot by room code. Corrupt metadata is logged
// and reported as not found rather than propagated.
func (st *Store) LoadRoom(ctx context.Context, code string) (*RoomSnapshot, error) {
	query := `
		SELECT code, name, public, max_players, owner_name, created_at, settings, roster, state
		FROM rooms WHERE code = $1
	`

	var snap RoomSnapshot
	var settings, roster []byte
	err := st.pool.QueryRow(ctx, query, code).Scan(
		&snap.Code,
		&snap.Name,
		&snap.Public,
		&snap.MaxPlayers,
		&snap.OwnerName,
		&snap.CreatedAt,
		&settings,
		&roster,
		&snap.State,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", code, err)
	}

	if err := json.Unmarshal(settings, &snap.Settings); err != nil {
		log.Printf("Warning: corrupt settings for room %s: %v", code, err)
		return nil, ErrRoomNotFound
	}
	if err := json.Unmarshal(roster, &snap.Roster); err != nil {
		log.Printf("Warning: corrupt roster for room %s: %v", code, err)
		return nil, ErrRoomNotFound
	}
	return &snap, nil
}

// DeleteRoom removes a room and its chat log.
func (st *Store) DeleteRoom(ctx context.Context, code string) error {
	if _, err := st.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	if _, err := st.pool.Exec(ctx, `DELETE FROM chat_messages WHERE room_code = $1`, code); err != nil {
		return fmt.Errorf("failed to delete chat for room %s: %w", code, err)
	}
	return nil
}

// ListPublicRooms returns joinable public rooms, newest first.
func (st *Store) ListPublicRooms(ctx context.Context) ([]RoomListing, error) {
	query := `
		SELECT code, name, owner_name, jsonb_array_length(roster), created_at
		FROM rooms
		WHERE public
		ORDER BY created_at DESC
		LIMIT 50
	`

	rows, err := st.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query room list: %w", err)
	}
	defer rows.Close()

	var listings []RoomListing
	for rows.Next() {
		var l RoomListing
		if err := rows.Scan(&l.Code, &l.Name, &l.OwnerName, &l.PlayerCount, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room listings: %w", err)
	}
	return listings, nil
}

// AppendChat adds one line to a room's chat log.
func (st *Store) AppendChat(ctx context.Context, entry ChatEntry) error {
	query := `
		INSERT INTO chat_messages (room_code, player_name, message, sent_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := st.pool.Exec(ctx, query, entry.RoomCode, entry.PlayerName, entry.Message, entry.SentAt)
	if err != nil {
		return fmt.Errorf("failed to append chat for %s: %w", entry.RoomCode, err)
	}
	return nil
}

// LoadChat returns the most recent limit lines, oldest first.
func (st *Store) LoadChat(ctx context.Context, code string, limit int) ([]ChatEntry, error) {
	query := `
		SELECT room_code, player_name, message, sent_at
		FROM chat_messages
		WHERE room_code = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT $2
	`

	rows, err := st.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat for %s: %w", code, err)
	}
	defer rows.Close()

	var entries []ChatEntry
	for rows.Next() {
		var e ChatEntry
		if err := rows.Scan(&e.RoomCode, &e.PlayerName, &e.Message, &e.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat entries: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
