package utils

import (
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NoteIDLength is the length of generated note identifiers.
const NoteIDLength = 10

var noteIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10}$`)

// GenerateNoteID returns a random URL-safe identifier for a new note.
func GenerateNoteID() (string, error) {
	id, err := gonanoid.New(NoteIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate note id: %w", err)
	}
	return id, nil
}

// IsValidNoteID reports whether id has the shape produced by GenerateNoteID.
func IsValidNoteID(id string) bool {
	return noteIDPattern.MatchString(id)
}
