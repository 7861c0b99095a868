package app

import (
	"reflect"
	"testing"

	"tilenotes/internal/docnet"
	"tilenotes/internal/docnet/docnettest"
	"tilenotes/internal/model"
)

func authedState() State {
	s := InitialState()
	s.Auth = Authenticated{Session: &docnet.Session{DID: "did:key:zTest"}}
	return s
}

func allActions(t *testing.T) []Action {
	doc := docnettest.MustDocument(t, "kdoc", model.NoteContent{Text: "x"})
	return []Action{
		AuthAction{Status: AuthLoading},
		AuthAction{Status: AuthFailed},
		AuthSuccessAction{Session: &docnet.Session{}},
		AuthSuccessAction{Notes: []model.NoteItem{{ID: "ceramic://ka", Title: "A"}}, Session: &docnet.Session{}},
		NavResetAction{},
		NavDraftAction{},
		NavNoteAction{StreamID: "ka"},
		DraftDeleteAction{},
		DraftStatusAction{Status: DraftSaving},
		DraftSavedAction{Title: "T", StreamID: "kdoc", Doc: doc},
		NoteLoadedAction{StreamID: "ka", Doc: doc},
		NoteLoadingStatusAction{StreamID: "ka", Status: NoteLoading},
		NoteSavingStatusAction{StreamID: "kdoc", Status: NoteSaving},
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	for _, a := range allActions(t) {
		in := authedState()
		in.Notes["ka"] = IndexLoadedNote{Status: NoteInit, Title: "A"}
		in.Notes["kdoc"] = StoredNote{Status: NoteLoaded, Title: "D"}
		snapshot := map[string]NoteEntry{}
		for k, v := range in.Notes {
			snapshot[k] = v
		}

		first := Reduce(in, a)
		second := Reduce(in, a)

		if !reflect.DeepEqual(in.Notes, snapshot) {
			t.Fatalf("%s: input notes mutated: %#v", a.Type(), in.Notes)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s: reduce is not deterministic", a.Type())
		}
	}
}

func TestReduce_NavResetIsIdempotent(t *testing.T) {
	t.Parallel()

	s := authedState()
	s.Nav = NavNote{StreamID: "ka"}
	once := Reduce(s, NavResetAction{})
	twice := Reduce(once, NavResetAction{})
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("nav reset not idempotent")
	}
	if _, ok := once.Nav.(NavDefault); !ok {
		t.Fatalf("expected default nav, got %#v", once.Nav)
	}
}

func TestReduce_AuthResetsNavigation(t *testing.T) {
	t.Parallel()

	s := authedState()
	s.Nav = NavDraft{}
	got := Reduce(s, AuthAction{Status: AuthLoading})
	if _, ok := got.Nav.(NavDefault); !ok {
		t.Fatalf("expected default nav, got %#v", got.Nav)
	}
	if StatusOf(got.Auth) != AuthLoading {
		t.Fatalf("expected loading, got %s", StatusOf(got.Auth))
	}
}

func TestReduce_AuthSuccessWithEmptyIndexOpensDraft(t *testing.T) {
	t.Parallel()

	s := Reduce(InitialState(), AuthAction{Status: AuthLoading})
	s.DraftStatus = DraftFailed
	s.Notes["stale"] = IndexLoadedNote{Status: NoteInit, Title: "stale"}

	sess := &docnet.Session{DID: "did:key:zA"}
	got := Reduce(s, AuthSuccessAction{Session: sess})

	if _, ok := got.Nav.(NavDraft); !ok {
		t.Fatalf("expected draft nav, got %#v", got.Nav)
	}
	if got.DraftStatus != DraftUnsaved {
		t.Fatalf("expected unsaved draft, got %s", got.DraftStatus)
	}
	if len(got.Notes) != 0 {
		t.Fatalf("expected no notes, got %#v", got.Notes)
	}
	if a, ok := got.Auth.(Authenticated); !ok || a.Session != sess {
		t.Fatalf("expected authenticated with session, got %#v", got.Auth)
	}
}

func TestReduce_AuthSuccessWithNotesSeedsIndexEntries(t *testing.T) {
	t.Parallel()

	s := Reduce(InitialState(), AuthAction{Status: AuthLoading})
	got := Reduce(s, AuthSuccessAction{
		Notes:   []model.NoteItem{{ID: "a", Title: "Alpha"}},
		Session: &docnet.Session{},
	})

	want := map[string]NoteEntry{"a": IndexLoadedNote{Status: NoteInit, Title: "Alpha"}}
	if !reflect.DeepEqual(got.Notes, want) {
		t.Fatalf("notes: got %#v want %#v", got.Notes, want)
	}
	if _, ok := got.Nav.(NavDefault); !ok {
		t.Fatalf("nav should be unchanged, got %#v", got.Nav)
	}
}

func TestReduce_AuthSuccessNormalizesURLKeys(t *testing.T) {
	t.Parallel()

	s := Reduce(InitialState(), AuthAction{Status: AuthLoading})
	got := Reduce(s, AuthSuccessAction{
		Notes:   []model.NoteItem{{ID: "ceramic://kabc", Title: "A"}},
		Session: &docnet.Session{},
	})
	if _, ok := got.Notes["kabc"]; !ok {
		t.Fatalf("expected bare key, got %#v", got.Notes)
	}
}

func TestReduce_AuthSuccessIgnoredUnlessLoading(t *testing.T) {
	t.Parallel()

	s := InitialState()
	got := Reduce(s, AuthSuccessAction{Session: &docnet.Session{}})
	if got.Authenticated() {
		t.Fatalf("auth success applied outside loading")
	}
}

func TestReduce_DraftSaved(t *testing.T) {
	t.Parallel()

	doc := docnettest.MustDocument(t, "kx", model.NoteContent{Text: "hi"})
	s := authedState()
	s.DraftStatus = DraftSaving
	got := Reduce(s, DraftSavedAction{Title: "T", StreamID: "kx", Doc: doc})

	if nav, ok := got.Nav.(NavNote); !ok || nav.StreamID != "kx" {
		t.Fatalf("expected note nav, got %#v", got.Nav)
	}
	if got.DraftStatus != DraftUnsaved {
		t.Fatalf("expected unsaved, got %s", got.DraftStatus)
	}
	entry, ok := got.Notes["kx"].(StoredNote)
	if !ok || entry.Status != NoteSaved || entry.Title != "T" || entry.Doc != doc {
		t.Fatalf("unexpected entry %#v", got.Notes["kx"])
	}
}

func TestReduce_GatedActionsIgnoredWhenUnauthenticated(t *testing.T) {
	t.Parallel()

	doc := docnettest.MustDocument(t, "kx", nil)
	for _, a := range []Action{
		NavDraftAction{},
		NavNoteAction{StreamID: "kx"},
		DraftStatusAction{Status: DraftSaving},
		DraftSavedAction{Title: "T", StreamID: "kx", Doc: doc},
		NoteLoadedAction{StreamID: "kx", Doc: doc},
	} {
		s := InitialState()
		if got := Reduce(s, a); !reflect.DeepEqual(got, s) {
			t.Fatalf("%s changed unauthenticated state: %#v", a.Type(), got)
		}
	}
}

func TestReduce_NoteLoadingStatusTouchesOnlyNamedEntry(t *testing.T) {
	t.Parallel()

	s := authedState()
	s.Notes["ka"] = IndexLoadedNote{Status: NoteInit, Title: "A"}
	s.Notes["kb"] = IndexLoadedNote{Status: NoteInit, Title: "B"}
	s.Notes["kc"] = StoredNote{Status: NoteLoaded, Title: "C"}

	got := Reduce(s, NoteLoadingStatusAction{StreamID: "kb", Status: NoteLoading})
	if got.Notes["ka"] != (IndexLoadedNote{Status: NoteInit, Title: "A"}) {
		t.Fatalf("ka changed: %#v", got.Notes["ka"])
	}
	if got.Notes["kb"] != (IndexLoadedNote{Status: NoteLoading, Title: "B"}) {
		t.Fatalf("kb not updated: %#v", got.Notes["kb"])
	}
	if !reflect.DeepEqual(got.Notes["kc"], s.Notes["kc"]) {
		t.Fatalf("kc changed: %#v", got.Notes["kc"])
	}

	// Stored entries ignore loading status.
	again := Reduce(got, NoteLoadingStatusAction{StreamID: "kc", Status: NoteLoadingFailed})
	if !reflect.DeepEqual(again, got) {
		t.Fatalf("loading status applied to stored entry")
	}
}

func TestReduce_NoteSavingStatusOnlyForStoredEntries(t *testing.T) {
	t.Parallel()

	s := authedState()
	s.Notes["ka"] = IndexLoadedNote{Status: NoteInit, Title: "A"}
	if got := Reduce(s, NoteSavingStatusAction{StreamID: "ka", Status: NoteSaving}); !reflect.DeepEqual(got, s) {
		t.Fatalf("saving status applied to index entry")
	}
	if got := Reduce(s, NoteSavingStatusAction{StreamID: "missing", Status: NoteSaving}); !reflect.DeepEqual(got, s) {
		t.Fatalf("saving status created an entry")
	}

	s.Notes["kb"] = StoredNote{Status: NoteLoaded, Title: "B"}
	got := Reduce(s, NoteSavingStatusAction{StreamID: "kb", Status: NoteSavingFailed})
	if e := got.Notes["kb"].(StoredNote); e.Status != NoteSavingFailed || e.Title != "B" {
		t.Fatalf("unexpected %#v", e)
	}
}

func TestReduce_NoteLoadedKeepsIndexTitle(t *testing.T) {
	t.Parallel()

	doc := docnettest.MustDocument(t, "ka", model.NoteContent{Text: "body"})
	s := authedState()
	s.Notes["ka"] = IndexLoadedNote{Status: NoteLoading, Title: "Alpha"}
	s.Nav = NavDefault{}

	// Applied even after navigating away.
	got := Reduce(s, NoteLoadedAction{StreamID: "ka", Doc: doc})
	e, ok := got.Notes["ka"].(StoredNote)
	if !ok || e.Status != NoteLoaded || e.Title != "Alpha" || e.Doc != doc {
		t.Fatalf("unexpected %#v", got.Notes["ka"])
	}

	fresh := Reduce(authedState(), NoteLoadedAction{StreamID: "kz", Doc: doc})
	if e := fresh.Notes["kz"].(StoredNote); e.Title != "" {
		t.Fatalf("expected empty title, got %q", e.Title)
	}
}

func TestReduce_DraftDeleteWorksWithoutAuth(t *testing.T) {
	t.Parallel()

	s := authedState()
	s.Nav = NavDraft{}
	s.DraftStatus = DraftFailed
	got := Reduce(s, DraftDeleteAction{})
	if got.DraftStatus != DraftUnsaved {
		t.Fatalf("draft status %s", got.DraftStatus)
	}
	if _, ok := got.Nav.(NavDefault); !ok {
		t.Fatalf("nav %#v", got.Nav)
	}
}
