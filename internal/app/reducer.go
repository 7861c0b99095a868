package app

// Reduce is the only way State changes. It is total over the action set: an action whose
// precondition does not hold returns s unchanged.
func Reduce(s State, a Action) State {
	if s.Notes == nil {
		s.Notes = map[string]NoteEntry{}
	}
	switch a := a.(type) {
	case AuthAction:
		s.Nav = NavDefault{}
		s.Auth = Unauthenticated{Status: a.Status}
		return s

	case AuthSuccessAction:
		if StatusOf(s.Auth) != AuthLoading {
			return s
		}
		auth := Authenticated{Session: a.Session}
		if len(a.Notes) == 0 {
			return State{
				Auth:        auth,
				Nav:         NavDraft{},
				DraftStatus: DraftUnsaved,
				Notes:       map[string]NoteEntry{},
			}
		}
		notes := make(map[string]NoteEntry, len(a.Notes))
		for _, item := range a.Notes {
			notes[NoteKey(item.ID)] = IndexLoadedNote{Status: NoteInit, Title: item.Title}
		}
		s.Auth = auth
		s.Notes = notes
		return s

	case NavResetAction:
		s.Nav = NavDefault{}
		return s

	case NavDraftAction:
		if !s.Authenticated() {
			return s
		}
		s.Nav = NavDraft{}
		return s

	case NavNoteAction:
		if !s.Authenticated() {
			return s
		}
		s.Nav = NavNote{StreamID: a.StreamID}
		return s

	case DraftStatusAction:
		if !s.Authenticated() {
			return s
		}
		s.DraftStatus = a.Status
		return s

	case DraftDeleteAction:
		s.DraftStatus = DraftUnsaved
		s.Nav = NavDefault{}
		return s

	case DraftSavedAction:
		if !s.Authenticated() {
			return s
		}
		notes := s.copyNotes()
		notes[a.StreamID] = StoredNote{Status: NoteSaved, Title: a.Title, Doc: a.Doc}
		s.Nav = NavNote{StreamID: a.StreamID}
		s.DraftStatus = DraftUnsaved
		s.Notes = notes
		return s

	case NoteLoadedAction:
		if !s.Authenticated() {
			return s
		}
		// Title comes from the index entry; a note opened without one keeps an empty title.
		title := ""
		if prev, ok := s.Notes[a.StreamID]; ok {
			title = prev.NoteTitle()
		}
		notes := s.copyNotes()
		notes[a.StreamID] = StoredNote{Status: NoteLoaded, Title: title, Doc: a.Doc}
		s.Notes = notes
		return s

	case NoteLoadingStatusAction:
		prev, ok := s.Notes[a.StreamID].(IndexLoadedNote)
		if !ok {
			return s
		}
		notes := s.copyNotes()
		prev.Status = a.Status
		notes[a.StreamID] = prev
		s.Notes = notes
		return s

	case NoteSavingStatusAction:
		prev, ok := s.Notes[a.StreamID].(StoredNote)
		if !ok {
			return s
		}
		notes := s.copyNotes()
		prev.Status = a.Status
		notes[a.StreamID] = prev
		s.Notes = notes
		return s
	}
	return s
}
