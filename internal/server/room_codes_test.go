package server_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tabletop-server/internal/server"
)

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func TestGenerateRoomCodeFormat(t *testing.T) {
	assert := assert.New(t)
	usedCodes := make(map[string]bool)

	for range 100 {
		code := server.GenerateRoomCode(usedCodes)

		assert.Equal(6, len(code))

		for _, ch := range code {
			assert.True(strings.ContainsRune(codeAlphabet, ch), "unexpected character %q in %s", ch, code)
		}
	}
}

func TestGenerateRoomCodeOmitsAmbiguousCharacters(t *testing.T) {
	usedCodes := make(map[string]bool)

	for range 500 {
		code := server.GenerateRoomCode(usedCodes)
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "L")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "1")
	}
}

func TestGenerateRoomCodeAvoidsUsedCodes(t *testing.T) {
	usedCodes := make(map[string]bool)
	generated := make(map[string]bool)

	for range 1000 {
		code := server.GenerateRoomCode(usedCodes)

		assert.False(t, generated[code], "Code %s was generated twice", code)

		generated[code] = true
		usedCodes[code] = true
	}

	assert.Equal(t, 1000, len(generated))
}

func TestValidateRoomCodeValidCodes(t *testing.T) {
	validCodes := []string{"ABCDEF", "234567", "XYZ789", "QQQQQQ"}

	for _, code := range validCodes {
		err := server.ValidateRoomCode(code)
		assert.NoError(t, err, "Code %s should be valid", code)
	}
}

func TestValidateRoomCodeInvalidLength(t *testing.T) {
	invalidCodes := []string{"", "A", "ABCDE", "ABCDEFG"}

	for _, code := range invalidCodes {
		err := server.ValidateRoomCode(code)
		assert.Error(t, err, "Code %s should be invalid (wrong length)", code)
		assert.Contains(t, err.Error(), "NOT_FOUND")
	}
}

func TestValidateRoomCodeInvalidCharacters(t *testing.T) {
	invalidCodes := []string{
		"ABC-EF", // special chars
		"ABC EF", // space
		"ABCDE0", // ambiguous digit
		"ABCDEI", // ambiguous letter
	}

	for _, code := range invalidCodes {
		err := server.ValidateRoomCode(code)
		assert.Error(t, err, "Code %s should be invalid (bad characters)", code)
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "ABCDEF", server.NormalizeRoomCode("  abcdef "))
	assert.Equal(t, "XYZ234", server.NormalizeRoomCode("xyz234"))
}
