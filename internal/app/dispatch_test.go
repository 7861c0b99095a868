package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tilenotes/internal/docnet"
	"tilenotes/internal/docnet/docnettest"
	"tilenotes/internal/model"
)

// fakeNet is an in-memory network serving as authenticator, document store and directory.
type fakeNet struct {
	mu      sync.Mutex
	docs    map[string]model.NoteContent
	index   *model.NotesList
	seq     int
	creates int

	authErr   error
	createErr error
	getErr    error
	setErr    error
	loadErr   error
	updateErr error
}

func newFakeNet() *fakeNet {
	return &fakeNet{docs: map[string]model.NoteContent{}}
}

func (f *fakeNet) Authenticate(ctx context.Context, seed []byte) (*docnet.Session, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &docnet.Session{DID: "did:key:zTest", Docs: f, Dir: f}, nil
}

func (f *fakeNet) Create(ctx context.Context, content any, meta docnet.Metadata) (*docnet.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	f.creates++
	id := fmt.Sprintf("knote%d", f.seq)
	f.docs[id] = content.(model.NoteContent)
	return docnettest.Document(id, content)
}

func (f *fakeNet) Load(ctx context.Context, id model.StreamID) (*docnet.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c, ok := f.docs[id.ID]
	if !ok {
		return nil, docnet.ErrNotFound
	}
	return docnettest.Document(id.ID, c)
}

func (f *fakeNet) Update(ctx context.Context, doc *docnet.Document, content any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.docs[doc.ID().ID] = content.(model.NoteContent)
	return nil
}

func (f *fakeNet) Get(ctx context.Context, alias string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return false, f.getErr
	}
	if f.index == nil {
		return false, nil
	}
	list := out.(*model.NotesList)
	list.Notes = append([]model.NoteItem(nil), f.index.Notes...)
	return true, nil
}

func (f *fakeNet) Set(ctx context.Context, alias string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	list := v.(model.NotesList)
	f.index = &list
	return nil
}

var fixedNow = time.Date(2021, 3, 4, 4, 6, 7, 8_000_000, time.UTC)

func testEnv(f *fakeNet) Env {
	return Env{
		Auth: f,
		Definitions: model.Definitions{
			Definitions: map[string]string{model.NotesAlias: "kdef"},
			Schemas:     map[string]string{model.NoteSchemaName: "ceramic://knoteschema?version=c"},
		},
		Now: func() time.Time { return fixedNow },
	}
}

// drive applies d.Now, then runs d.Later and applies its action.
func drive(t *testing.T, s State, d Dispatch) State {
	t.Helper()
	for _, a := range d.Now {
		s = Reduce(s, a)
	}
	if d.Later != nil {
		s = Reduce(s, d.Later(context.Background()))
	}
	return s
}

func login(t *testing.T, env Env) State {
	t.Helper()
	s := drive(t, InitialState(), env.Authenticate([]byte("seed")))
	if !s.Authenticated() {
		t.Fatalf("expected authenticated, got %#v", s.Auth)
	}
	return s
}

func TestAuthenticate_EmptyIndexOpensDraft(t *testing.T) {
	t.Parallel()

	env := testEnv(newFakeNet())
	d := env.Authenticate([]byte("seed"))
	if len(d.Now) != 1 || d.Now[0] != (AuthAction{Status: AuthLoading}) {
		t.Fatalf("expected auth loading first, got %#v", d.Now)
	}
	s := drive(t, InitialState(), d)
	if _, ok := s.Nav.(NavDraft); !ok {
		t.Fatalf("expected draft nav, got %#v", s.Nav)
	}
}

func TestAuthenticate_FailureLeavesUnauthenticated(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	f.authErr = errors.New("bad seed")
	s := drive(t, InitialState(), testEnv(f).Authenticate([]byte("seed")))
	if StatusOf(s.Auth) != AuthFailed {
		t.Fatalf("expected failed, got %s", StatusOf(s.Auth))
	}

	f2 := newFakeNet()
	f2.getErr = errors.New("index unreachable")
	s = drive(t, InitialState(), testEnv(f2).Authenticate([]byte("seed")))
	if StatusOf(s.Auth) != AuthFailed {
		t.Fatalf("expected failed on index read, got %s", StatusOf(s.Auth))
	}
}

func TestAuthenticate_ExistingIndex(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	f.index = &model.NotesList{Notes: []model.NoteItem{{ID: "a", Title: "Alpha"}}}
	s := drive(t, InitialState(), testEnv(f).Authenticate([]byte("seed")))

	if got := s.Notes["a"]; got != (IndexLoadedNote{Status: NoteInit, Title: "Alpha"}) {
		t.Fatalf("unexpected notes %#v", s.Notes)
	}
	if _, ok := s.Nav.(NavDefault); !ok {
		t.Fatalf("expected default nav, got %#v", s.Nav)
	}
}

func TestSaveDraft_ThenEditThenReopenInFreshSession(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	s := login(t, env)

	d := env.SaveDraft(s, "Hello", "Hello")
	if len(d.Now) != 1 || d.Now[0] != (DraftStatusAction{Status: DraftSaving}) {
		t.Fatalf("expected saving first, got %#v", d.Now)
	}
	s = drive(t, s, d)

	id, ok := s.CurrentNote()
	if !ok {
		t.Fatalf("expected note nav, got %#v", s.Nav)
	}
	entry := s.Notes[id].(StoredNote)
	if entry.Status != NoteSaved || entry.Title != "Hello" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if f.index == nil || len(f.index.Notes) != 1 || f.index.Notes[0].ID != "ceramic://"+id {
		t.Fatalf("index not written: %#v", f.index)
	}
	if got := f.docs[id]; got.Text != "Hello" || got.Date != "2021-03-04T04:06:07.008Z" {
		t.Fatalf("unexpected doc content %#v", got)
	}

	s = drive(t, s, env.SaveNote(s, entry.Doc, "World"))
	if e := s.Notes[id].(StoredNote); e.Status != NoteSaved {
		t.Fatalf("expected saved, got %s", e.Status)
	}

	fresh := login(t, env)
	if e := fresh.Notes[id]; e != (IndexLoadedNote{Status: NoteInit, Title: "Hello"}) {
		t.Fatalf("unexpected fresh entry %#v", e)
	}
	open := env.OpenNote(fresh, id)
	if len(open.Now) != 2 || open.Now[1] != (NoteLoadingStatusAction{StreamID: id, Status: NoteLoading}) {
		t.Fatalf("unexpected immediate actions %#v", open.Now)
	}
	fresh = drive(t, fresh, open)
	loaded := fresh.Notes[id].(StoredNote)
	if loaded.Status != NoteLoaded || loaded.Title != "Hello" {
		t.Fatalf("unexpected loaded entry %#v", loaded)
	}
	note, err := loaded.Doc.Note()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if note.Text != "World" {
		t.Fatalf("expected World, got %q", note.Text)
	}
}

func TestSaveDraft_NewestFirst(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	s := login(t, env)
	s = drive(t, s, env.SaveDraft(s, "First", "1"))
	s = drive(t, s, env.SaveDraft(s, "Second", "2"))

	if len(f.index.Notes) != 2 || f.index.Notes[0].Title != "Second" || f.index.Notes[1].Title != "First" {
		t.Fatalf("unexpected order %#v", f.index.Notes)
	}
}

func TestSaveDraft_IndexWriteFailureKeepsOrphanDocument(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	s := login(t, env)
	f.setErr = errors.New("network down")

	s = drive(t, s, env.SaveDraft(s, "T", "body"))
	if s.DraftStatus != DraftFailed {
		t.Fatalf("expected failed, got %s", s.DraftStatus)
	}
	if _, ok := s.Nav.(NavDraft); !ok {
		t.Fatalf("expected to stay on draft, got %#v", s.Nav)
	}
	if f.creates != 1 {
		t.Fatalf("expected the created document to remain, creates=%d", f.creates)
	}
}

func TestSaveDraft_RejectsOversizedInput(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	s := login(t, env)

	s = drive(t, s, env.SaveDraft(s, strings.Repeat("t", model.MaxNoteTitleLen+1), "x"))
	if s.DraftStatus != DraftFailed {
		t.Fatalf("expected failed, got %s", s.DraftStatus)
	}
	s = drive(t, s, env.SaveDraft(s, "ok", strings.Repeat("x", model.MaxNoteTextLen+1)))
	if s.DraftStatus != DraftFailed {
		t.Fatalf("expected failed, got %s", s.DraftStatus)
	}
	if f.creates != 0 {
		t.Fatalf("nothing should be created, creates=%d", f.creates)
	}
}

func TestSaveDraft_RequiresSession(t *testing.T) {
	t.Parallel()

	d := testEnv(newFakeNet()).SaveDraft(InitialState(), "T", "x")
	if len(d.Now) != 0 || d.Later != nil {
		t.Fatalf("expected empty dispatch, got %#v", d)
	}
}

func TestOpenNote_SkipsFetchWhenStoredOrLoading(t *testing.T) {
	t.Parallel()

	env := testEnv(newFakeNet())
	s := login(t, env)
	s.Notes["ka"] = StoredNote{Status: NoteLoaded, Title: "A"}
	s.Notes["kb"] = IndexLoadedNote{Status: NoteLoading, Title: "B"}

	for _, id := range []string{"ka", "kb"} {
		d := env.OpenNote(s, id)
		if d.Later != nil || len(d.Now) != 1 {
			t.Fatalf("%s: expected nav only, got %#v", id, d)
		}
	}
}

func TestOpenNote_LoadFailureThenRetry(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	f.index = &model.NotesList{Notes: []model.NoteItem{{ID: "ceramic://kgone", Title: "Gone"}}}
	env := testEnv(f)
	s := login(t, env)

	s = drive(t, s, env.OpenNote(s, "ceramic://kgone"))
	if e := s.Notes["kgone"]; e != (IndexLoadedNote{Status: NoteLoadingFailed, Title: "Gone"}) {
		t.Fatalf("unexpected %#v", e)
	}

	f.docs["kgone"] = model.NoteContent{Text: "back"}
	s = drive(t, s, env.OpenNote(s, "kgone"))
	if e, ok := s.Notes["kgone"].(StoredNote); !ok || e.Status != NoteLoaded {
		t.Fatalf("retry did not load: %#v", s.Notes["kgone"])
	}
}

func TestOpenNote_StaleCompletionAppliedAfterNavigatingAway(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	f.docs["ka"] = model.NoteContent{Text: "a"}
	f.index = &model.NotesList{Notes: []model.NoteItem{{ID: "ka", Title: "A"}}}
	env := testEnv(f)
	s := login(t, env)

	d := env.OpenNote(s, "ka")
	for _, a := range d.Now {
		s = Reduce(s, a)
	}
	s = Reduce(s, NavResetAction{})
	s = Reduce(s, d.Later(context.Background()))

	if _, ok := s.Notes["ka"].(StoredNote); !ok {
		t.Fatalf("stale load dropped: %#v", s.Notes["ka"])
	}
	if _, ok := s.Nav.(NavDefault); !ok {
		t.Fatalf("nav changed by completion: %#v", s.Nav)
	}
}

func TestSaveNote_OverlappingSavesLastCompletionWins(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	s := login(t, env)
	s = drive(t, s, env.SaveDraft(s, "T", "v0"))
	id, _ := s.CurrentNote()
	doc := s.Notes[id].(StoredNote).Doc

	first := env.SaveNote(s, doc, "v1")
	second := env.SaveNote(s, doc, "v2")
	for _, a := range append(first.Now, second.Now...) {
		s = Reduce(s, a)
	}
	ok := second.Later(context.Background())
	f.updateErr = errors.New("conflict")
	failed := first.Later(context.Background())

	s = Reduce(s, ok)
	s = Reduce(s, failed)
	if e := s.Notes[id].(StoredNote); e.Status != NoteSavingFailed {
		t.Fatalf("expected last applied status, got %s", e.Status)
	}
}

func TestSaveNote_Failure(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	s := login(t, env)
	s = drive(t, s, env.SaveDraft(s, "T", "v0"))
	id, _ := s.CurrentNote()
	doc := s.Notes[id].(StoredNote).Doc

	f.updateErr = errors.New("boom")
	s = drive(t, s, env.SaveNote(s, doc, "v1"))
	if e := s.Notes[id].(StoredNote); e.Status != NoteSavingFailed {
		t.Fatalf("expected saving failed, got %s", e.Status)
	}
}

func TestContainer_RunAndWait(t *testing.T) {
	t.Parallel()

	f := newFakeNet()
	env := testEnv(f)
	c := NewContainer(InitialState(), WithEffectTimeout(5*time.Second))
	defer c.Close()

	if err := c.Run(env.Authenticate([]byte("seed"))); err != nil {
		t.Fatalf("run: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.WaitFor(ctx, func(s State) bool { return s.Authenticated() })
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	if err := c.Run(env.SaveDraft(s, "Title", "body")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := c.State().DraftStatus; got != DraftSaving && got != DraftUnsaved {
		t.Fatalf("unexpected draft status after run: %s", got)
	}
	s, err = c.WaitFor(ctx, func(s State) bool {
		_, ok := s.CurrentNote()
		return ok || s.DraftStatus == DraftFailed
	})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	id, ok := s.CurrentNote()
	if !ok {
		t.Fatalf("expected note nav, got %#v", s.Nav)
	}
	if e := s.Notes[id].(StoredNote); e.Title != "Title" {
		t.Fatalf("unexpected %#v", e)
	}
}

func TestContainer_ClosedRejectsWork(t *testing.T) {
	t.Parallel()

	c := NewContainer(InitialState())
	c.Close()
	if err := c.Apply(NavResetAction{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestContainer_RunRacingClose(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		c := NewContainer(InitialState())
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- c.Run(Dispatch{Later: func(ctx context.Context) Action {
					<-ctx.Done()
					return NavResetAction{}
				}})
			}()
		}
		c.Close()
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil && !errors.Is(err, ErrClosed) {
				t.Fatalf("run: %v", err)
			}
		}
		if err := c.Run(Dispatch{Later: func(context.Context) Action { return nil }}); !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed after close, got %v", err)
		}
	}
}
