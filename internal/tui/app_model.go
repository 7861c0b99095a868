package tui

import (
	"encoding/hex"
	"sort"
	"time"

	"tilenotes/internal/app"
	"tilenotes/internal/did"
	"tilenotes/internal/model"
	"tilenotes/internal/store"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"go.uber.org/zap"
)

type focus int

const (
	focusList focus = iota
	focusTitle
	focusBody
)

const (
	sidebarWidth             = 32
	minibufferAutoClearAfter = 4 * time.Second
)

type appModel struct {
	env     app.Env
	state   app.State
	timeout time.Duration
	log     *zap.Logger

	width  int
	height int

	// order is the sidebar order: index order from authentication, new notes in front.
	order []string

	seedInput  textinput.Model
	notes      list.Model
	draftTitle textinput.Model
	draftBody  textarea.Model
	noteBody   textarea.Model

	focus focus
	// editorFor is the stream whose content was last loaded into noteBody.
	editorFor string
	preview   bool

	tuiStore     store.Store
	restoreNote  string
	restoreDID   string
	minibuffer   string
	minibufferAt time.Time
}

func newAppModel(opts Options) appModel {
	applyGlyphPreference(opts.Glyphs)

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = app.DefaultEffectTimeout
	}

	seed := textinput.New()
	seed.Placeholder = "hex seed (64 characters)"
	seed.EchoMode = textinput.EchoPassword
	seed.CharLimit = 66
	seed.Width = 66
	if len(opts.Seed) > 0 {
		seed.SetValue(hex.EncodeToString(opts.Seed))
	}
	seed.Focus()

	notes := list.New(nil, newCompactItemDelegate(), sidebarWidth, 10)
	notes.Title = "Notes"
	notes.SetShowHelp(false)
	notes.SetShowStatusBar(false)
	notes.SetFilteringEnabled(false)
	notes.DisableQuitKeybindings()

	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = model.MaxNoteTitleLen

	body := textarea.New()
	body.Placeholder = "Write your note…"
	body.CharLimit = model.MaxNoteTextLen
	body.ShowLineNumbers = false

	edit := textarea.New()
	edit.CharLimit = model.MaxNoteTextLen
	edit.ShowLineNumbers = false

	m := appModel{
		env:        opts.Env,
		state:      app.InitialState(),
		timeout:    timeout,
		log:        log,
		seedInput:  seed,
		notes:      notes,
		draftTitle: title,
		draftBody:  body,
		noteBody:   edit,
		tuiStore:   opts.State,
	}
	if st, err := opts.State.LoadTUIState(); err == nil && st != nil {
		m.restoreNote = st.OpenNoteID
		m.restoreDID = st.DID
		m.preview = st.Preview
	}
	return m
}

func (m *appModel) showMinibuffer(text string) {
	m.minibuffer = text
	m.minibufferAt = time.Now()
}

func (m *appModel) seed() ([]byte, error) {
	return did.ParseSeed(m.seedInput.Value())
}

// persistTUIState records the open note; errors are ignored.
func (m appModel) persistTUIState() {
	sess, ok := m.state.Session()
	if !ok {
		return
	}
	id, _ := m.state.CurrentNote()
	_ = m.tuiStore.SaveTUIState(&store.TUIState{
		DID:        sess.DID,
		OpenNoteID: id,
		Preview:    m.preview,
	})
}

func sortedKeys(notes map[string]app.NoteEntry) []string {
	keys := make([]string, 0, len(notes))
	for k := range notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
