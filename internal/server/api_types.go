package server

import (
	"time"

	"tabletop-server/internal/table"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"` // the message type that failed
}

// ============================================================================
// ROOM LIFECYCLE (room:create, room:join, room:leave, room:list)
// ============================================================================
// tygo:generate
type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	RoomName   string `json:"roomName"`
	Public     bool   `json:"public"`
	SessionID  string `json:"sessionId,omitempty"`
}

// tygo:generate
type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	SessionID  string `json:"sessionId,omitempty"`
}

// tygo:generate
type RoomJoinedResponse struct {
	RoomCode    string `json:"roomCode"`
	RoomName    string `json:"roomName"`
	PlayerID    string `json:"playerId"`
	SessionID   string `json:"sessionId"`
	Color       string `json:"color"`
	Reconnected bool   `json:"reconnected"`
}

// tygo:generate
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Connected bool   `json:"connected"`
}

// tygo:generate
type PlayerJoinedNotification struct {
	Player PlayerInfo `json:"player"`
}

// tygo:generate
type PlayerLeftNotification struct {
	PlayerID   string        `json:"playerId"`
	PlayerName string        `json:"playerName"`
	FreedLocks []int         `json:"freedLocks"`
	Scattered  []*table.Card `json:"scattered"`
}

// tygo:generate
type PlayerConnectionNotification struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Connected  bool   `json:"connected"`
	FreedLocks []int  `json:"freedLocks,omitempty"`
}

// tygo:generate
type RoomListResponse struct {
	Rooms []RoomListing `json:"rooms"`
}

// ============================================================================
// ROOM SETTINGS (room:settings)
// ============================================================================
// tygo:generate
type UpdateSettingsRequest struct {
	Background *string `json:"background,omitempty"`
	Music      *string `json:"music,omitempty"`
}

// tygo:generate
type SettingsChangedNotification struct {
	Settings RoomSettings `json:"settings"`
}

// ============================================================================
// CARDS (card:move, card:flip)
// ============================================================================
// tygo:generate
type CardMoveRequest struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// tygo:generate
type CardFlipRequest struct {
	ID int `json:"id"`
}

// ============================================================================
// LOCKS (lock:acquire, lock:release)
// ============================================================================
// tygo:generate
type LockRequest struct {
	ID int `json:"id"`
}

// tygo:generate
type LockNotification struct {
	ID       int    `json:"id"`
	PlayerID string `json:"playerId,omitempty"` // empty means released
}

// ============================================================================
// STACKS (stack:*)
// ============================================================================
// tygo:generate
type StackCreateRequest struct {
	CardIDs []int   `json:"cardIds"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// tygo:generate
type StackMoveRequest struct {
	ID             int     `json:"id"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	DetachFromZone bool    `json:"detachFromZone"`
}

// tygo:generate
type StackMovedNotification struct {
	Stack *table.Stack  `json:"stack"`
	Cards []*table.Card `json:"cards"`
}

// tygo:generate
type StackCardRequest struct {
	StackID int `json:"stackId"`
	CardID  int `json:"cardId"`
}

// tygo:generate
type StackCardAddedNotification struct {
	StackID int         `json:"stackId"`
	Card    *table.Card `json:"card"`
}

// tygo:generate
type StackRemoveCardRequest struct {
	CardID int     `json:"cardId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// tygo:generate
type StackMergeRequest struct {
	SourceID int `json:"sourceId"`
	TargetID int `json:"targetId"`
}

// tygo:generate
type StackMergedNotification struct {
	SourceID int           `json:"sourceId"`
	Target   *table.Stack  `json:"target"`
	Cards    []*table.Card `json:"cards"`
}

// tygo:generate
type StackShuffleRequest struct {
	ID int `json:"id"`
}

// tygo:generate
type StackShuffledNotification struct {
	Stack *table.Stack  `json:"stack"`
	Cards []*table.Card `json:"cards"`
}

// tygo:generate
type StackReorderRequest struct {
	ID      int `json:"id"`
	CardID  int `json:"cardId"`
	ToIndex int `json:"toIndex"`
}

// ============================================================================
// ZONES (zone:*)
// ============================================================================
// tygo:generate
type ZoneCreateRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Label      string  `json:"label"`
	FaceUp     bool    `json:"faceUp"`
	Visibility string  `json:"visibility"`
	OwnerID    string  `json:"ownerId,omitempty"`
	Layout     string  `json:"layout"`
	Scale      float64 `json:"scale"`
	Spacing    float64 `json:"spacing"`
	Jitter     float64 `json:"jitter"`
}

// tygo:generate
type ZoneUpdateRequest struct {
	ID         int      `json:"id"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	W          *float64 `json:"w,omitempty"`
	H          *float64 `json:"h,omitempty"`
	Label      *string  `json:"label,omitempty"`
	FaceUp     *bool    `json:"faceUp,omitempty"`
	Locked     *bool    `json:"locked,omitempty"`
	Visibility *string  `json:"visibility,omitempty"`
	Layout     *string  `json:"layout,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
	Spacing    *float64 `json:"spacing,omitempty"`
	Jitter     *float64 `json:"jitter,omitempty"`
}

// tygo:generate
type ZoneUpdatedNotification struct {
	Zone  *table.Zone   `json:"zone"`
	Stack *table.Stack  `json:"stack,omitempty"`
	Cards []*table.Card `json:"cards,omitempty"`
}

// tygo:generate
type ZoneDeleteRequest struct {
	ID int `json:"id"`
}

// tygo:generate
type ZoneDeletedNotification struct {
	ZoneID    int           `json:"zoneId"`
	StackID   *int          `json:"stackId,omitempty"`
	Scattered []*table.Card `json:"scattered"`
}

// tygo:generate
type ZoneAddCardRequest struct {
	ZoneID int `json:"zoneId"`
	CardID int `json:"cardId"`
}

// tygo:generate
type ZoneAddCardsRequest struct {
	ZoneID  int   `json:"zoneId"`
	CardIDs []int `json:"cardIds"`
}

// tygo:generate
type ZoneCardsAddedNotification struct {
	Zone         *table.Zone   `json:"zone"`
	Stack        *table.Stack  `json:"stack"`
	Cards        []*table.Card `json:"cards"`
	StackCreated bool          `json:"stackCreated"`
}

// ============================================================================
// HANDS (hand:*)
// ============================================================================
// tygo:generate
type HandAddCardRequest struct {
	CardID int `json:"cardId"`
}

// tygo:generate
type HandRemoveCardRequest struct {
	CardID int     `json:"cardId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	FaceUp bool    `json:"faceUp"`
}

// tygo:generate
type HandAddStackRequest struct {
	StackID int `json:"stackId"`
}

// tygo:generate
type HandReorderRequest struct {
	CardID  int `json:"cardId"`
	ToIndex int `json:"toIndex"`
}

// HandUpdateResponse goes only to the hand's owner; everyone else gets a
// HandCountNotification.
// tygo:generate
type HandUpdateResponse struct {
	CardIDs []int `json:"cardIds"`
}

// tygo:generate
type HandCountNotification struct {
	PlayerID string `json:"playerId"`
	Count    int    `json:"count"`
}

// HandCardTakenNotification tells the room a visible card left the table
// for someone's hand. The card's face is not included.
// tygo:generate
type HandCardTakenNotification struct {
	PlayerID string `json:"playerId"`
	CardID   int    `json:"cardId"`
	Count    int    `json:"count"`
}

// tygo:generate
type HandCardRemovedNotification struct {
	PlayerID string      `json:"playerId"`
	Count    int         `json:"count"`
	Card     *table.Card `json:"card"`
}

// tygo:generate
type HandStackPickedUpNotification struct {
	PlayerID string `json:"playerId"`
	StackID  int    `json:"stackId"`
	Count    int    `json:"count"`
}

// ============================================================================
// CURSORS (cursor:update)
// ============================================================================
// tygo:generate
type CursorUpdateRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// tygo:generate
type CursorNotification struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// ============================================================================
// FULL SYNC (sync request, sync:state response)
// ============================================================================
// SyncState is personalized per player: other players' hand cards are
// omitted from Cards, only the counts appear.
// tygo:generate
type SyncState struct {
	RoomCode   string            `json:"roomCode"`
	RoomName   string            `json:"roomName"`
	OwnerName  string            `json:"ownerName"`
	Settings   RoomSettings      `json:"settings"`
	Players    []PlayerInfo      `json:"players"`
	Cards      []*table.Card     `json:"cards"`
	Stacks     []*table.Stack    `json:"stacks"`
	Zones      []*table.Zone     `json:"zones"`
	YourHand   []int             `json:"yourHand"`
	HandCounts map[string]int    `json:"handCounts"`
	Cursors    map[string]Cursor `json:"cursors"`
	TopZ       int               `json:"topZ"`
}

// ============================================================================
// CHAT (chat:send, chat:history)
// ============================================================================
// tygo:generate
type ChatSendRequest struct {
	Message string `json:"message"`
}

// tygo:generate
type ChatMessageNotification struct {
	PlayerName string    `json:"playerName"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sentAt"`
}

// tygo:generate
type ChatHistoryRequest struct {
	Limit int `json:"limit"`
}

// tygo:generate
type ChatHistoryResponse struct {
	Messages []ChatEntry `json:"messages"`
}
