package table

// LockTracker records which player is currently manipulating which card
// or stack. Locks are advisory: they exist so other clients can render
// "in use" feedback, and nothing in the mutation layer consults them.
// Acquire overwrites silently; conflict policy belongs to the caller.
//
// A tracker is never persisted. Rooms reloaded from storage start with a
// fresh one.
type LockTracker struct {
	table *Table
	locks map[int]string // object id -> holding player id
}

// NewLockTracker builds a tracker bound to a table so lock state mirrors
// onto the entities' LockedBy fields for full-state syncs.
func NewLockTracker(t *Table) *LockTracker {
	return &LockTracker{
		table: t,
		locks: make(map[int]string),
	}
}

// Acquire claims an object for a player, overwriting any previous holder.
// Unknown object ids are rejected.
func (lt *LockTracker) Acquire(objectID int, playerID string) bool {
	if playerID == "" || !lt.mark(objectID, playerID) {
		return false
	}
	lt.locks[objectID] = playerID
	return true
}

// Release drops the lock on an object, whoever holds it.
func (lt *LockTracker) Release(objectID int) {
	if _, held := lt.locks[objectID]; !held {
		return
	}
	delete(lt.locks, objectID)
	lt.mark(objectID, "")
}

// ReleaseAllForPlayer drops every lock a player holds and returns the
// freed object ids, for broadcast.
func (lt *LockTracker) ReleaseAllForPlayer(playerID string) []int {
	var freed []int
	for objectID, holder := range lt.locks {
		if holder == playerID {
			delete(lt.locks, objectID)
			lt.mark(objectID, "")
			freed = append(freed, objectID)
		}
	}
	return freed
}

// ReleaseAll drops every lock.
func (lt *LockTracker) ReleaseAll() {
	for objectID := range lt.locks {
		lt.mark(objectID, "")
		delete(lt.locks, objectID)
	}
}

// Holder returns the player holding an object, or "".
func (lt *LockTracker) Holder(objectID int) string {
	return lt.locks[objectID]
}

// Dispose releases everything; the tracker must not be used afterwards.
func (lt *LockTracker) Dispose() {
	lt.ReleaseAll()
	lt.table = nil
}

// mark mirrors the holder onto the card or stack entity. Returns false
// when the id names neither.
func (lt *LockTracker) mark(objectID int, playerID string) bool {
	if lt.table == nil {
		return false
	}
	if card, ok := lt.table.Cards[objectID]; ok {
		card.LockedBy = playerID
		return true
	}
	if stack, ok := lt.table.Stacks[objectID]; ok {
		stack.LockedBy = playerID
		return true
	}
	return false
}
