package app

import (
	"context"
	"time"

	"tilenotes/internal/docnet"
	"tilenotes/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultEffectTimeout bounds every network call an effect makes.
const DefaultEffectTimeout = 30 * time.Second

// Effect performs asynchronous work and reports its outcome as a single action.
type Effect func(ctx context.Context) Action

// Dispatch is the result of invoking a dispatcher: actions to apply immediately, in
// order, and an optional effect whose action is applied when it completes.
type Dispatch struct {
	Now   []Action
	Later Effect
}

// Env carries what dispatchers need from the outside world.
type Env struct {
	Auth        docnet.Authenticator
	Definitions model.Definitions
	Now         func() time.Time
	Logger      *zap.Logger
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// Authenticate resets navigation, marks auth as loading and then authenticates with seed
// and reads the notes index.
func (e Env) Authenticate(seed []byte) Dispatch {
	return Dispatch{
		Now: []Action{AuthAction{Status: AuthLoading}},
		Later: func(ctx context.Context) Action {
			if e.Auth == nil {
				e.log().Warn("authenticate: no authenticator configured")
				return AuthAction{Status: AuthFailed}
			}
			sess, err := e.Auth.Authenticate(ctx, seed)
			if err != nil {
				e.log().Warn("authenticate failed", zap.Error(err))
				return AuthAction{Status: AuthFailed}
			}
			var list model.NotesList
			if _, err := sess.Dir.Get(ctx, model.NotesAlias, &list); err != nil {
				e.log().Warn("read notes index failed", zap.String("did", sess.DID), zap.Error(err))
				return AuthAction{Status: AuthFailed}
			}
			e.log().Info("authenticated", zap.String("did", sess.DID), zap.Int("notes", len(list.Notes)))
			return AuthSuccessAction{Notes: list.Notes, Session: sess}
		},
	}
}

func OpenDraft() Dispatch {
	return Dispatch{Now: []Action{NavDraftAction{}}}
}

func DeleteDraft() Dispatch {
	return Dispatch{Now: []Action{DraftDeleteAction{}}}
}

// SaveDraft creates a note document and prepends it to the notes index. The document
// create and the index read run concurrently; the index write waits for both. A failure
// at any step leaves already-created documents in place and reports draft failure.
func (e Env) SaveDraft(s State, title, text string) Dispatch {
	sess, ok := s.Session()
	if !ok {
		return Dispatch{}
	}
	now := e.now()
	return Dispatch{
		Now: []Action{DraftStatusAction{Status: DraftSaving}},
		Later: func(ctx context.Context) Action {
			log := e.log().With(zap.String("title", title))
			if err := model.ValidateNoteTitle(title); err != nil {
				log.Warn("save draft rejected", zap.Error(err))
				return DraftStatusAction{Status: DraftFailed}
			}
			if err := model.ValidateNoteText(text); err != nil {
				log.Warn("save draft rejected", zap.Error(err))
				return DraftStatusAction{Status: DraftFailed}
			}

			var (
				doc  *docnet.Document
				list model.NotesList
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				d, err := sess.Docs.Create(gctx, model.NewNoteContent(text, now), docnet.Metadata{
					Controllers: []string{sess.DID},
					Schema:      e.Definitions.NoteSchema(),
				})
				doc = d
				return err
			})
			g.Go(func() error {
				_, err := sess.Dir.Get(gctx, model.NotesAlias, &list)
				return err
			})
			if err := g.Wait(); err != nil {
				log.Warn("save draft failed", zap.Error(err))
				return DraftStatusAction{Status: DraftFailed}
			}

			next := list.Prepend(model.NoteItem{ID: doc.ID().URL(), Title: title})
			if err := sess.Dir.Set(ctx, model.NotesAlias, next); err != nil {
				log.Warn("save draft: index write failed", zap.String("stream", doc.ID().String()), zap.Error(err))
				return DraftStatusAction{Status: DraftFailed}
			}
			log.Info("draft saved", zap.String("stream", doc.ID().String()))
			return DraftSavedAction{Title: title, StreamID: doc.ID().String(), Doc: doc}
		},
	}
}

// OpenNote navigates to a note and fetches its document unless it is already loaded or
// a fetch is in flight.
func (e Env) OpenNote(s State, streamID string) Dispatch {
	key := NoteKey(streamID)
	d := Dispatch{Now: []Action{NavNoteAction{StreamID: key}}}
	sess, ok := s.Session()
	if !ok {
		return d
	}
	entry, exists := s.Notes[key]
	if exists {
		idx, isIndex := entry.(IndexLoadedNote)
		if !isIndex || idx.Status == NoteLoading {
			return d
		}
		d.Now = append(d.Now, NoteLoadingStatusAction{StreamID: key, Status: NoteLoading})
	}
	d.Later = func(ctx context.Context) Action {
		sid, err := model.ParseStreamID(key)
		if err != nil {
			e.log().Warn("open note: bad stream id", zap.String("stream", key), zap.Error(err))
			return NoteLoadingStatusAction{StreamID: key, Status: NoteLoadingFailed}
		}
		doc, err := sess.Docs.Load(ctx, sid)
		if err != nil {
			e.log().Warn("load note failed", zap.String("stream", key), zap.Error(err))
			return NoteLoadingStatusAction{StreamID: key, Status: NoteLoadingFailed}
		}
		return NoteLoadedAction{StreamID: key, Doc: doc}
	}
	return d
}

// SaveNote replaces a loaded note's content with text stamped with the current time.
func (e Env) SaveNote(s State, doc *docnet.Document, text string) Dispatch {
	sess, ok := s.Session()
	if !ok || doc == nil {
		return Dispatch{}
	}
	key := doc.ID().String()
	now := e.now()
	return Dispatch{
		Now: []Action{NoteSavingStatusAction{StreamID: key, Status: NoteSaving}},
		Later: func(ctx context.Context) Action {
			if err := model.ValidateNoteText(text); err != nil {
				e.log().Warn("save note rejected", zap.String("stream", key), zap.Error(err))
				return NoteSavingStatusAction{StreamID: key, Status: NoteSavingFailed}
			}
			if err := sess.Docs.Update(ctx, doc, model.NewNoteContent(text, now)); err != nil {
				e.log().Warn("save note failed", zap.String("stream", key), zap.Error(err))
				return NoteSavingStatusAction{StreamID: key, Status: NoteSavingFailed}
			}
			return NoteSavingStatusAction{StreamID: key, Status: NoteSaved}
		},
	}
}
