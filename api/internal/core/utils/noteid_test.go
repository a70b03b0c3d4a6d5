package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backsnote/backsnote/api/internal/core/utils"
)

func TestGenerateNoteID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := utils.GenerateNoteID()
		require.NoError(t, err)
		assert.Len(t, id, utils.NoteIDLength)
		assert.True(t, utils.IsValidNoteID(id), "generated id %q should be valid", id)
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}

func TestIsValidNoteID(t *testing.T) {
	valid := []string{"abcdefghij", "ABC_def-12", "0123456789", "__________"}
	for _, id := range valid {
		assert.True(t, utils.IsValidNoteID(id), id)
	}

	invalid := []string{"", "short", "abcdefghijk", "abc def ghi", "abcdefghi!", "abcdéfghij", "../../etc/"}
	for _, id := range invalid {
		assert.False(t, utils.IsValidNoteID(id), id)
	}
}
