package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"tilenotes/internal/app"
	"tilenotes/internal/did"
	"tilenotes/internal/docnet"
	"tilenotes/internal/model"
	"tilenotes/internal/store"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// resolveSeed returns the seed from --seed/TILENOTES_SEED, else from the seed file.
// With required=false a missing seed file yields nil.
func (a *App) resolveSeed(required bool) ([]byte, error) {
	if v := strings.TrimSpace(a.Seed); v != "" {
		return did.ParseSeed(v)
	}
	path := a.cfg.SeedPath(a.ConfigDir)
	seed, err := did.ReadSeedFile(path, promptPassphrase)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if required {
				return nil, errNoSeed
			}
			return nil, nil
		}
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return seed, nil
}

// promptPassphrase reads TILENOTES_PASSPHRASE, or asks on the terminal.
func promptPassphrase() (string, error) {
	if v := os.Getenv("TILENOTES_PASSPHRASE"); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", did.ErrPassphraseRequired
	}
	fmt.Fprint(os.Stderr, "Seed passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *App) definitions() (model.Definitions, error) {
	return store.LoadDefinitions(a.cfg.DefinitionsPath(a.ConfigDir))
}

func (a *App) env() (app.Env, error) {
	defs, err := a.definitions()
	if err != nil {
		return app.Env{}, err
	}
	return app.Env{
		Auth: &docnet.Network{
			NodeURL:     a.nodeURL(),
			Definitions: defs,
			Logger:      a.logger(),
		},
		Definitions: defs,
		Logger:      a.logger(),
	}, nil
}

// runner drives the app container for one command and exposes the actions it applied.
type runner struct {
	env     app.Env
	c       *app.Container
	actions chan app.Action
	ctx     context.Context
	cancel  context.CancelFunc
}

func (a *App) newRunner(ctx context.Context) (*runner, error) {
	env, err := a.env()
	if err != nil {
		return nil, err
	}
	r := &runner{env: env, actions: make(chan app.Action, 256)}
	r.ctx, r.cancel = context.WithTimeout(ctx, 4*a.timeout())
	r.c = app.NewContainer(app.InitialState(),
		app.WithContainerLogger(a.logger()),
		app.WithEffectTimeout(a.timeout()),
		app.WithActionObserver(func(act app.Action, _ app.State) {
			select {
			case r.actions <- act:
			default:
			}
		}),
	)
	return r, nil
}

func (r *runner) Close() {
	r.c.Close()
	r.cancel()
}

func (r *runner) state() app.State { return r.c.State() }

// run starts d and waits for the first applied action matching done.
func (r *runner) run(d app.Dispatch, done func(app.Action) bool) (app.Action, error) {
	if err := r.c.Run(d); err != nil {
		return nil, err
	}
	for {
		select {
		case <-r.ctx.Done():
			return nil, r.ctx.Err()
		case act := <-r.actions:
			if done(act) {
				return act, nil
			}
		}
	}
}

// login authenticates and returns the notes index in order.
func (r *runner) login(seed []byte) ([]model.NoteItem, *docnet.Session, error) {
	act, err := r.run(r.env.Authenticate(seed), func(a app.Action) bool {
		switch a := a.(type) {
		case app.AuthSuccessAction:
			return true
		case app.AuthAction:
			return a.Status == app.AuthFailed
		}
		return false
	})
	if err != nil {
		return nil, nil, err
	}
	success, ok := act.(app.AuthSuccessAction)
	if !ok {
		return nil, nil, errOpFailed("authenticate", string(app.AuthFailed))
	}
	return success.Notes, success.Session, nil
}

// open loads a note document, returning the stored entry.
func (r *runner) open(id string) (app.StoredNote, error) {
	key := app.NoteKey(id)
	act, err := r.run(r.env.OpenNote(r.state(), key), func(a app.Action) bool {
		switch a := a.(type) {
		case app.NoteLoadedAction:
			return a.StreamID == key
		case app.NoteLoadingStatusAction:
			return a.StreamID == key && a.Status == app.NoteLoadingFailed
		}
		return false
	})
	if err != nil {
		return app.StoredNote{}, err
	}
	if _, ok := act.(app.NoteLoadedAction); !ok {
		return app.StoredNote{}, errNotFound("note", key)
	}
	entry, ok := r.state().Notes[key].(app.StoredNote)
	if !ok {
		return app.StoredNote{}, errNotFound("note", key)
	}
	return entry, nil
}

func (a *App) withSession(ctx context.Context, fn func(r *runner, notes []model.NoteItem, sess *docnet.Session) error) error {
	seed, err := a.resolveSeed(true)
	if err != nil {
		return err
	}
	r, err := a.newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	notes, sess, err := r.login(seed)
	if err != nil {
		return err
	}
	a.logger().Debug("session ready", zap.String("did", sess.DID), zap.Int("notes", len(notes)))
	return fn(r, notes, sess)
}

// saveDraft creates a note and returns its stream id.
func (r *runner) saveDraft(title, text string) (string, error) {
	act, err := r.run(r.env.SaveDraft(r.state(), title, text), func(a app.Action) bool {
		switch a := a.(type) {
		case app.DraftSavedAction:
			return true
		case app.DraftStatusAction:
			return a.Status == app.DraftFailed
		}
		return false
	})
	if err != nil {
		return "", err
	}
	saved, ok := act.(app.DraftSavedAction)
	if !ok {
		return "", errOpFailed("save note", string(app.DraftFailed))
	}
	return saved.StreamID, nil
}

// saveNote replaces the text of a loaded note.
func (r *runner) saveNote(entry app.StoredNote, text string) error {
	key := entry.Doc.ID().String()
	act, err := r.run(r.env.SaveNote(r.state(), entry.Doc, text), func(a app.Action) bool {
		s, ok := a.(app.NoteSavingStatusAction)
		return ok && s.StreamID == key && (s.Status == app.NoteSaved || s.Status == app.NoteSavingFailed)
	})
	if err != nil {
		return err
	}
	if s := act.(app.NoteSavingStatusAction); s.Status != app.NoteSaved {
		return errOpFailed("save note", string(s.Status))
	}
	return nil
}

// noteView is the JSON shape of a note in command output.
type noteView struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Title  string   `json:"title"`
	Date   string   `json:"date,omitempty"`
	Text   string   `json:"text"`
	Commit string   `json:"commit,omitempty"`
	Log    []string `json:"log,omitempty"`
	Status string   `json:"status,omitempty"`
}

func storedNoteView(e app.StoredNote) (noteView, error) {
	v := noteView{Title: e.Title, Status: string(e.Status)}
	if e.Doc == nil {
		return v, nil
	}
	note, err := e.Doc.Note()
	if err != nil {
		return v, err
	}
	v.ID = e.Doc.ID().String()
	v.URL = e.Doc.ID().URL()
	v.Date = note.Date
	v.Text = note.Text
	v.Commit = e.Doc.CommitID().URL()
	v.Log = e.Doc.Log()
	return v, nil
}

func storedEntry(r *runner, id string) (app.StoredNote, bool) {
	e, ok := r.state().Notes[app.NoteKey(id)].(app.StoredNote)
	return e, ok
}
