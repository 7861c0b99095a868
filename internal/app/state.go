// Package app holds the client state machine: the State tree, the actions that change
// it, the pure Reduce function, and the dispatchers that talk to the document network
// and turn the outcome into actions.
package app

import (
	"tilenotes/internal/docnet"
	"tilenotes/internal/model"
)

type AuthStatus string

const (
	AuthPending AuthStatus = "pending"
	AuthLoading AuthStatus = "loading"
	AuthFailed  AuthStatus = "failed"
	AuthDone    AuthStatus = "done"
)

type DraftStatus string

const (
	DraftUnsaved DraftStatus = "unsaved"
	DraftSaving  DraftStatus = "saving"
	DraftFailed  DraftStatus = "failed"
	DraftSaved   DraftStatus = "saved"
)

type NoteLoadingStatus string

const (
	NoteInit          NoteLoadingStatus = "init"
	NoteLoading       NoteLoadingStatus = "loading"
	NoteLoadingFailed NoteLoadingStatus = "loading failed"
)

type NoteSavingStatus string

const (
	NoteLoaded       NoteSavingStatus = "loaded"
	NoteSaving       NoteSavingStatus = "saving"
	NoteSavingFailed NoteSavingStatus = "saving failed"
	NoteSaved        NoteSavingStatus = "saved"
)

// AuthState is Unauthenticated or Authenticated.
type AuthState interface {
	authStatus() AuthStatus
}

type Unauthenticated struct {
	Status AuthStatus
}

type Authenticated struct {
	Session *docnet.Session
}

func (a Unauthenticated) authStatus() AuthStatus { return a.Status }
func (Authenticated) authStatus() AuthStatus     { return AuthDone }

// StatusOf reports the status of any auth state; nil counts as pending.
func StatusOf(a AuthState) AuthStatus {
	if a == nil {
		return AuthPending
	}
	return a.authStatus()
}

// Navigation is NavDefault, NavDraft or NavNote.
type Navigation interface {
	isNavigation()
}

type NavDefault struct{}

type NavDraft struct{}

type NavNote struct {
	StreamID string
}

func (NavDefault) isNavigation() {}
func (NavDraft) isNavigation()   {}
func (NavNote) isNavigation()    {}

// NoteEntry is IndexLoadedNote (known from the index only) or StoredNote (document
// fetched or freshly created).
type NoteEntry interface {
	NoteTitle() string
	isNoteEntry()
}

type IndexLoadedNote struct {
	Status NoteLoadingStatus
	Title  string
}

type StoredNote struct {
	Status NoteSavingStatus
	Title  string
	Doc    *docnet.Document
}

func (n IndexLoadedNote) NoteTitle() string { return n.Title }
func (n StoredNote) NoteTitle() string      { return n.Title }
func (IndexLoadedNote) isNoteEntry()        {}
func (StoredNote) isNoteEntry()             {}

// State is the whole client state tree. Reduce never mutates a State in place; Notes is
// copied before any change.
type State struct {
	Auth        AuthState
	Nav         Navigation
	DraftStatus DraftStatus
	Notes       map[string]NoteEntry
}

func InitialState() State {
	return State{
		Auth:        Unauthenticated{Status: AuthPending},
		Nav:         NavDefault{},
		DraftStatus: DraftUnsaved,
		Notes:       map[string]NoteEntry{},
	}
}

// Session returns the authenticated session, if any.
func (s State) Session() (*docnet.Session, bool) {
	a, ok := s.Auth.(Authenticated)
	if !ok || a.Session == nil {
		return nil, false
	}
	return a.Session, true
}

func (s State) Authenticated() bool {
	_, ok := s.Auth.(Authenticated)
	return ok
}

// CurrentNote returns the stream id under NavNote.
func (s State) CurrentNote() (string, bool) {
	n, ok := s.Nav.(NavNote)
	return n.StreamID, ok
}

// NoteKey normalizes a stream id or URL to the key used in State.Notes.
func NoteKey(id string) string {
	sid, err := model.ParseStreamID(id)
	if err != nil {
		return id
	}
	return sid.String()
}

func (s State) copyNotes() map[string]NoteEntry {
	out := make(map[string]NoteEntry, len(s.Notes)+1)
	for k, v := range s.Notes {
		out[k] = v
	}
	return out
}
