package server

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// roomCodeAlphabet omits I, L, O, 0 and 1, which read ambiguously when a
// player relays a code out loud or off a screen.
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// GenerateRoomCode returns a code not present in usedCodes. The caller is
// responsible for recording the returned code as used.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))]
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("NOT_FOUND: room code must be exactly 6 characters")
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if !strings.ContainsRune(roomCodeAlphabet, ch) {
			return errors.New("NOT_FOUND: room code contains invalid characters")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
