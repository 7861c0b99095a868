package app

import (
	"tilenotes/internal/docnet"
	"tilenotes/internal/model"
)

// Action is one of the fixed set of state transitions Reduce understands.
type Action interface {
	Type() string
}

type AuthAction struct {
	Status AuthStatus
}

type AuthSuccessAction struct {
	Notes   []model.NoteItem
	Session *docnet.Session
}

type NavResetAction struct{}

type NavDraftAction struct{}

type NavNoteAction struct {
	StreamID string
}

type DraftDeleteAction struct{}

type DraftStatusAction struct {
	Status DraftStatus
}

type DraftSavedAction struct {
	Title    string
	StreamID string
	Doc      *docnet.Document
}

type NoteLoadedAction struct {
	StreamID string
	Doc      *docnet.Document
}

type NoteLoadingStatusAction struct {
	StreamID string
	Status   NoteLoadingStatus
}

type NoteSavingStatusAction struct {
	StreamID string
	Status   NoteSavingStatus
}

func (AuthAction) Type() string              { return "auth" }
func (AuthSuccessAction) Type() string       { return "auth success" }
func (NavResetAction) Type() string          { return "nav reset" }
func (NavDraftAction) Type() string          { return "nav draft" }
func (NavNoteAction) Type() string           { return "nav note" }
func (DraftDeleteAction) Type() string       { return "draft delete" }
func (DraftStatusAction) Type() string       { return "draft status" }
func (DraftSavedAction) Type() string        { return "draft saved" }
func (NoteLoadedAction) Type() string        { return "note loaded" }
func (NoteLoadingStatusAction) Type() string { return "note loading status" }
func (NoteSavingStatusAction) Type() string  { return "note saving status" }
