package server

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabletop-server/internal/table"
)

const (
	defaultMaxPlayers         = 8
	defaultGraceWindow        = 60 * time.Second
	defaultMaxRoomAge         = 24 * time.Hour
	defaultRetainDisconnected = 24 * time.Hour
)

// colorPalette is the fixed set of player colors; one room never assigns
// the same color twice, which is also what caps players at eight.
var colorPalette = [defaultMaxPlayers]string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#42d4f4", "#f032e6",
}

// Player is one room member, keyed by connection id. Identity survives
// disconnects through the session id: a rejoin presenting the same
// session rebinds this record to the new connection.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Connected bool   `json:"connected"`

	SessionID string    `json:"-"`
	JoinedAt  time.Time `json:"-"`
	LastSeen  time.Time `json:"-"`
}

// Cursor is a player's last known pointer position. Ephemeral, never
// persisted.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Room is one live session: its entity graph, lock tracker, membership
// and cursors. The mutex serializes every mutation to the graph; handlers
// hold it for the duration of one message and never across I/O.
type Room struct {
	mu sync.Mutex

	Code       string
	Name       string
	Public     bool
	MaxPlayers int
	OwnerName  string
	CreatedAt  time.Time
	Settings   RoomSettings

	Players map[string]*Player
	Table   *table.Table
	Locks   *table.LockTracker
	Cursors map[string]Cursor

	// lastConnected is when the room last had a connected player,
	// feeding the max-age sweep.
	lastConnected time.Time
}

// Snapshot captures the room for persistence under the room lock.
func (r *Room) Snapshot() *RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() *RoomSnapshot {
	state, err := r.Table.Snapshot()
	if err != nil {
		log.Printf("Failed to serialize table for room %s: %v", r.Code, err)
		return nil
	}

	roster := make([]PlayerRecord, 0, len(r.Players))
	for _, p := range r.Players {
		roster = append(roster, PlayerRecord{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			SessionID: p.SessionID,
		})
	}

	return &RoomSnapshot{
		Code:       r.Code,
		Name:       r.Name,
		Public:     r.Public,
		MaxPlayers: r.MaxPlayers,
		OwnerName:  r.OwnerName,
		CreatedAt:  r.CreatedAt,
		Settings:   r.Settings,
		Roster:     roster,
		State:      state,
	}
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) playerBySessionLocked(sessionID string) *Player {
	if sessionID == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (r *Room) nextFreeColorLocked() string {
	for _, color := range colorPalette {
		taken := false
		for _, p := range r.Players {
			if p.Color == color {
				taken = true
				break
			}
		}
		if !taken {
			return color
		}
	}
	return ""
}

// Departure describes what leaving or disconnecting released, for the
// caller to broadcast.
type Departure struct {
	Player     *Player
	FreedLocks []int
	Scattered  []*table.Card
	RoomEmpty  bool
}

// RoomManager owns the table of live rooms: creation, joining with
// session reconnection, departure, grace-window eviction and the periodic
// sweep. All timers are fields here; nothing is process-global.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	store     RoomStore
	scheduler *SaveScheduler

	graceMu     sync.Mutex
	graceTimers map[string]*time.Timer

	// Tunable before first use; tests shrink these.
	GraceWindow        time.Duration
	MaxRoomAge         time.Duration
	RetainDisconnected time.Duration
	MaxPlayers         int

	// OnPlayerRemoved fires when the sweep drops a long-disconnected
	// player, so the server can notify the room.
	OnPlayerRemoved func(room *Room, player *Player, scattered []*table.Card)
}

func NewRoomManager(store RoomStore, scheduler *SaveScheduler) *RoomManager {
	return &RoomManager{
		rooms:              make(map[string]*Room),
		store:              store,
		scheduler:          scheduler,
		graceTimers:        make(map[string]*time.Timer),
		GraceWindow:        defaultGraceWindow,
		MaxRoomAge:         defaultMaxRoomAge,
		RetainDisconnected: defaultRetainDisconnected,
		MaxPlayers:         defaultMaxPlayers,
	}
}

func validatePlayerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("INVALID_ACTION: player name cannot be empty")
	}
	if len(name) > 20 {
		return errors.New("INVALID_ACTION: player name too long (max 20 characters)")
	}
	return nil
}

// CreateRoom starts a new room with the caller as its first player and
// owner. A session id is minted when the client doesn't present one.
func (rm *RoomManager) CreateRoom(ctx context.Context, connID, playerName, sessionID, roomName string, public bool) (*Room, *Player, error) {
	if err := validatePlayerName(playerName); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(roomName) == "" {
		roomName = playerName + "'s table"
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	code, err := rm.reserveCode(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	player := &Player{
		ID:        connID,
		Name:      strings.TrimSpace(playerName),
		Color:     colorPalette[0],
		Connected: true,
		SessionID: sessionID,
		JoinedAt:  now,
		LastSeen:  now,
	}

	tbl := table.New()
	room := &Room{
		Code:          code,
		Name:          strings.TrimSpace(roomName),
		Public:        public,
		MaxPlayers:    rm.MaxPlayers,
		OwnerName:     player.Name,
		CreatedAt:     now,
		Players:       map[string]*Player{connID: player},
		Table:         tbl,
		Locks:         table.NewLockTracker(tbl),
		Cursors:       make(map[string]Cursor),
		lastConnected: now,
	}

	rm.mu.Lock()
	rm.rooms[code] = room
	rm.mu.Unlock()

	supplier := rm.supplierFor(code)
	rm.scheduler.StartAutoSave(code, supplier)
	// Immediate first write so the room shows up in listings right away.
	rm.scheduler.SaveNow(code, supplier)

	log.Printf("Room %s created by %s", code, player.Name)
	return room, player, nil
}

// JoinRoom adds a player to a room, loading it from durable storage if it
// is not resident. A session id matching an existing member is treated as
// reconnection: the stable identity is rebound onto the new connection id
// and the hand follows, without counting against the player cap.
func (rm *RoomManager) JoinRoom(ctx context.Context, connID, code, playerName, sessionID string) (*Room, *Player, bool, error) {
	code = NormalizeRoomCode(code)
	if err := ValidateRoomCode(code); err != nil {
		return nil, nil, false, ErrRoomNotFound
	}

	room, err := rm.getOrLoadRoom(ctx, code)
	if err != nil {
		return nil, nil, false, err
	}
	rm.cancelEviction(code)

	now := time.Now()
	room.mu.Lock()

	if existing := room.playerBySessionLocked(sessionID); existing != nil {
		oldID := existing.ID
		if oldID != connID {
			delete(room.Players, oldID)
			existing.ID = connID
			room.Players[connID] = existing
			room.Table.TransferHandOwnership(oldID, connID)
			delete(room.Cursors, oldID)
		}
		existing.Connected = true
		existing.LastSeen = now
		room.lastConnected = now
		room.mu.Unlock()

		rm.scheduler.ScheduleSave(code, rm.supplierFor(code))
		log.Printf("Player %s reconnected to room %s as %s", existing.Name, code, connID)
		return room, existing, true, nil
	}

	if err := validatePlayerName(playerName); err != nil {
		room.mu.Unlock()
		return nil, nil, false, err
	}
	if len(room.Players) >= room.MaxPlayers {
		room.mu.Unlock()
		return nil, nil, false, errors.New("FULL: room is at capacity")
	}
	color := room.nextFreeColorLocked()
	if color == "" {
		room.mu.Unlock()
		return nil, nil, false, errors.New("FULL: room is at capacity")
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	player := &Player{
		ID:        connID,
		Name:      strings.TrimSpace(playerName),
		Color:     color,
		Connected: true,
		SessionID: sessionID,
		JoinedAt:  now,
		LastSeen:  now,
	}
	room.Players[connID] = player
	room.lastConnected = now
	room.mu.Unlock()

	rm.scheduler.ScheduleSave(code, rm.supplierFor(code))
	log.Printf("Player %s joined room %s", player.Name, code)
	return room, player, false, nil
}

// getOrLoadRoom returns the resident room or reconstitutes one from its
// durable snapshot: fresh lock tracker, graph from the snapshot, roster
// loaded disconnected.
func (rm *RoomManager) getOrLoadRoom(ctx context.Context, code string) (*Room, error) {
	rm.mu.RLock()
	room, ok := rm.rooms[code]
	rm.mu.RUnlock()
	if ok {
		return room, nil
	}

	snap, err := rm.store.LoadRoom(ctx, code)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	tbl, err := table.FromSnapshot(snap.State)
	if err != nil {
		log.Printf("Warning: corrupt snapshot for room %s: %v", code, err)
		return nil, ErrRoomNotFound
	}

	now := time.Now()
	players := make(map[string]*Player, len(snap.Roster))
	for _, rec := range snap.Roster {
		players[rec.ID] = &Player{
			ID:        rec.ID,
			Name:      rec.Name,
			Color:     rec.Color,
			Connected: false,
			SessionID: rec.SessionID,
			JoinedAt:  now,
			LastSeen:  now,
		}
	}

	loaded := &Room{
		Code:          snap.Code,
		Name:          snap.Name,
		Public:        snap.Public,
		MaxPlayers:    snap.MaxPlayers,
		OwnerName:     snap.OwnerName,
		CreatedAt:     snap.CreatedAt,
		Settings:      snap.Settings,
		Players:       players,
		Table:         tbl,
		Locks:         table.NewLockTracker(tbl),
		Cursors:       make(map[string]Cursor),
		lastConnected: now,
	}

	rm.mu.Lock()
	// Another join may have raced the load; keep the resident copy.
	if existing, ok := rm.rooms[code]; ok {
		rm.mu.Unlock()
		return existing, nil
	}
	rm.rooms[code] = loaded
	rm.mu.Unlock()

	rm.scheduler.StartAutoSave(code, rm.supplierFor(code))
	log.Printf("Room %s reloaded from storage (%d retained players)", code, len(players))
	return loaded, nil
}

// RoomFor returns the resident room for a code, if any.
func (rm *RoomManager) RoomFor(code string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, ok := rm.rooms[code]
	return room, ok
}

// LeaveRoom removes a player for good: locks released, hand scattered
// back onto the table, identity dropped. An emptied room starts the
// grace-window eviction timer.
func (rm *RoomManager) LeaveRoom(code, connID string) (*Room, *Departure, error) {
	room, ok := rm.RoomFor(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	room.mu.Lock()
	player, ok := room.Players[connID]
	if !ok {
		room.mu.Unlock()
		return nil, nil, errors.New("INVALID_ACTION: not a member of this room")
	}

	dep := &Departure{
		Player:     player,
		FreedLocks: room.Locks.ReleaseAllForPlayer(connID),
		Scattered:  room.Table.RemovePlayer(connID),
	}
	delete(room.Players, connID)
	delete(room.Cursors, connID)
	dep.RoomEmpty = room.connectedCountLocked() == 0
	room.mu.Unlock()

	rm.scheduler.ScheduleSave(code, rm.supplierFor(code))
	if dep.RoomEmpty {
		rm.scheduleEviction(code)
	}

	log.Printf("Player %s left room %s", player.Name, code)
	return room, dep, nil
}

// DisconnectPlayer marks a player disconnected but retains identity and
// hand for a session-matched rejoin. Locks are released and the cursor
// cleared.
func (rm *RoomManager) DisconnectPlayer(code, connID string) (*Room, *Departure, error) {
	room, ok := rm.RoomFor(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	room.mu.Lock()
	player, ok := room.Players[connID]
	if !ok {
		room.mu.Unlock()
		return nil, nil, errors.New("INVALID_ACTION: not a member of this room")
	}

	player.Connected = false
	player.LastSeen = time.Now()
	dep := &Departure{
		Player:     player,
		FreedLocks: room.Locks.ReleaseAllForPlayer(connID),
	}
	delete(room.Cursors, connID)
	dep.RoomEmpty = room.connectedCountLocked() == 0
	room.mu.Unlock()

	rm.scheduler.ScheduleSave(code, rm.supplierFor(code))
	if dep.RoomEmpty {
		rm.scheduleEviction(code)
	}

	log.Printf("Player %s disconnected from room %s (identity retained)", player.Name, code)
	return room, dep, nil
}

// ListRooms returns the public room listings from durable storage.
func (rm *RoomManager) ListRooms(ctx context.Context) ([]RoomListing, error) {
	return rm.store.ListPublicRooms(ctx)
}

func (rm *RoomManager) scheduleEviction(code string) {
	rm.graceMu.Lock()
	defer rm.graceMu.Unlock()
	if _, pending := rm.graceTimers[code]; pending {
		return
	}
	rm.graceTimers[code] = time.AfterFunc(rm.GraceWindow, func() {
		rm.evictIfEmpty(code)
	})
}

func (rm *RoomManager) cancelEviction(code string) {
	rm.graceMu.Lock()
	defer rm.graceMu.Unlock()
	if timer, ok := rm.graceTimers[code]; ok {
		timer.Stop()
		delete(rm.graceTimers, code)
	}
}

func (rm *RoomManager) evictIfEmpty(code string) {
	rm.graceMu.Lock()
	delete(rm.graceTimers, code)
	rm.graceMu.Unlock()

	room, ok := rm.RoomFor(code)
	if !ok {
		return
	}
	room.mu.Lock()
	empty := room.connectedCountLocked() == 0
	room.mu.Unlock()
	if !empty {
		return
	}
	rm.evictRoom(code, false)
}

// evictRoom drops a room from memory after one final save, or deletes it
// from durable storage entirely when wipeDurable is set.
func (rm *RoomManager) evictRoom(code string, wipeDurable bool) {
	rm.mu.Lock()
	room, ok := rm.rooms[code]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.rooms, code)
	rm.mu.Unlock()

	rm.scheduler.StopAutoSave(code)
	rm.scheduler.CancelScheduledSave(code)
	rm.cancelEviction(code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if wipeDurable {
		if err := rm.store.DeleteRoom(ctx, code); err != nil {
			log.Printf("Failed to delete room %s: %v", code, err)
		}
	} else if snap := room.Snapshot(); snap != nil {
		if err := rm.store.SaveRoom(ctx, snap); err != nil {
			log.Printf("Final save failed for room %s: %v", code, err)
		}
	}

	room.Locks.Dispose()
	log.Printf("Room %s evicted from memory (wiped: %v)", code, wipeDurable)
}

// Sweep runs periodically: it evicts rooms with no connected players
// (saving first), wipes rooms idle beyond the max age, and drops players
// who stayed disconnected past the retention window, scattering their
// hands back onto the table.
func (rm *RoomManager) Sweep() {
	rm.mu.RLock()
	codes := make([]string, 0, len(rm.rooms))
	for code := range rm.rooms {
		codes = append(codes, code)
	}
	rm.mu.RUnlock()

	now := time.Now()
	for _, code := range codes {
		room, ok := rm.RoomFor(code)
		if !ok {
			continue
		}

		type removal struct {
			player    *Player
			scattered []*table.Card
		}
		var removals []removal

		room.mu.Lock()
		for id, p := range room.Players {
			if !p.Connected && now.Sub(p.LastSeen) > rm.RetainDisconnected {
				room.Locks.ReleaseAllForPlayer(id)
				scattered := room.Table.RemovePlayer(id)
				delete(room.Players, id)
				delete(room.Cursors, id)
				removals = append(removals, removal{player: p, scattered: scattered})
			}
		}
		connected := room.connectedCountLocked()
		if connected > 0 {
			room.lastConnected = now
		}
		idleSince := room.lastConnected
		room.mu.Unlock()

		for _, r := range removals {
			log.Printf("Dropped stale disconnected player %s from room %s", r.player.Name, code)
			if rm.OnPlayerRemoved != nil {
				rm.OnPlayerRemoved(room, r.player, r.scattered)
			}
		}
		if len(removals) > 0 {
			rm.scheduler.ScheduleSave(code, rm.supplierFor(code))
		}

		if connected == 0 {
			if now.Sub(idleSince) > rm.MaxRoomAge {
				rm.evictRoom(code, true)
			} else {
				rm.evictRoom(code, false)
			}
		}
	}
}

// Dispose tears everything down for shutdown: grace timers canceled,
// every resident room saved, lock trackers disposed, scheduler closed
// (which flushes pending saves and stops autosave loops).
func (rm *RoomManager) Dispose() {
	rm.graceMu.Lock()
	for code, timer := range rm.graceTimers {
		timer.Stop()
		delete(rm.graceTimers, code)
	}
	rm.graceMu.Unlock()

	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	rm.rooms = make(map[string]*Room)
	rm.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	for _, room := range rooms {
		if snap := room.Snapshot(); snap != nil {
			if err := rm.store.SaveRoom(ctx, snap); err != nil {
				log.Printf("Shutdown save failed for room %s: %v", room.Code, err)
			}
		}
		room.Locks.Dispose()
	}

	rm.scheduler.Close()
}

// reserveCode finds a code unused both in memory and in durable storage.
func (rm *RoomManager) reserveCode(ctx context.Context) (string, error) {
	rm.mu.RLock()
	used := make(map[string]bool, len(rm.rooms))
	for code := range rm.rooms {
		used[code] = true
	}
	rm.mu.RUnlock()

	for attempt := 0; attempt < 10; attempt++ {
		code := GenerateRoomCode(used)
		_, err := rm.store.LoadRoom(ctx, code)
		if errors.Is(err, ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		used[code] = true
	}
	return "", errors.New("INTERNAL_ERROR: could not allocate a room code")
}

func (rm *RoomManager) supplierFor(code string) StateSupplier {
	return func() *RoomSnapshot {
		room, ok := rm.RoomFor(code)
		if !ok {
			return nil
		}
		return room.Snapshot()
	}
}
