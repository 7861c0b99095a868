package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// StreamURLScheme prefixes stream ids in their URL form.
	StreamURLScheme = "ceramic://"

	MaxNoteTitleLen = 100
	MaxNoteTextLen  = 4000
	MaxStreamURLLen = 150
)

// NoteContent is the body of a note document (schema "Note").
type NoteContent struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// NewNoteContent stamps text with the given time in RFC 3339 (UTC, millisecond precision).
func NewNoteContent(text string, now time.Time) NoteContent {
	return NoteContent{
		Date: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Text: text,
	}
}

// NoteItem references a note document from the notes index.
type NoteItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NotesList is the content of the "notes" index document (schema "NotesList").
// Newest notes come first.
type NotesList struct {
	Notes []NoteItem `json:"notes"`
}

// Prepend returns a new list with item in front, dropping any older entry with the same stream.
func (l NotesList) Prepend(item NoteItem) NotesList {
	out := NotesList{Notes: make([]NoteItem, 0, len(l.Notes)+1)}
	out.Notes = append(out.Notes, item)
	key := streamKey(item.ID)
	for _, n := range l.Notes {
		if streamKey(n.ID) == key {
			continue
		}
		out.Notes = append(out.Notes, n)
	}
	return out
}

func streamKey(s string) string {
	id, err := ParseStreamID(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return id.String()
}

func ValidateNoteTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title is empty")
	}
	if n := len([]rune(title)); n > MaxNoteTitleLen {
		return fmt.Errorf("title too long: %d > %d", n, MaxNoteTitleLen)
	}
	return nil
}

func ValidateNoteText(text string) error {
	if n := len([]rune(text)); n > MaxNoteTextLen {
		return fmt.Errorf("text too long: %d > %d", n, MaxNoteTextLen)
	}
	return nil
}
