package tui

import (
	"context"
	"strings"
	"time"

	"tilenotes/internal/app"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// actionMsg carries the outcome of an effect back into the update loop.
type actionMsg struct {
	action app.Action
}

type startAuthMsg struct{}

type minibufferTickMsg struct{}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if strings.TrimSpace(m.seedInput.Value()) != "" {
		cmds = append(cmds, func() tea.Msg { return startAuthMsg{} })
	}
	return tea.Batch(cmds...)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case actionMsg:
		cmd := m.apply(msg.action)
		return m, cmd
	case startAuthMsg:
		return m, m.authenticate()
	case minibufferTickMsg:
		if m.minibuffer != "" && time.Since(m.minibufferAt) >= minibufferAutoClearAfter {
			m.minibuffer = ""
		}
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m.updateFocused(msg)
}

// dispatch applies d.Now in order and schedules d.Later.
func (m *appModel) dispatch(d app.Dispatch) tea.Cmd {
	var cmds []tea.Cmd
	for _, a := range d.Now {
		if c := m.apply(a); c != nil {
			cmds = append(cmds, c)
		}
	}
	if d.Later != nil {
		cmds = append(cmds, m.effectCmd(d.Later))
	}
	return tea.Batch(cmds...)
}

func (m *appModel) effectCmd(eff app.Effect) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return actionMsg{action: eff(ctx)}
	}
}

func (m *appModel) apply(a app.Action) tea.Cmd {
	if a == nil {
		return nil
	}
	m.log.Debug("action", zap.String("type", a.Type()))
	m.state = app.Reduce(m.state, a)
	flashedAt := m.minibufferAt

	var cmd tea.Cmd
	switch a := a.(type) {
	case app.AuthAction:
		if a.Status == app.AuthFailed {
			m.flash("Authentication failed")
		}
	case app.AuthSuccessAction:
		if m.state.Authenticated() {
			m.order = nil
			for _, it := range a.Notes {
				m.order = append(m.order, app.NoteKey(it.ID))
			}
			m.seedInput.Blur()
			cmd = m.restoreCmd()
		}
	case app.DraftStatusAction:
		if a.Status == app.DraftFailed {
			m.flash("Saving draft failed")
		}
	case app.DraftSavedAction:
		if m.state.Authenticated() {
			m.order = append([]string{a.StreamID}, removeString(m.order, a.StreamID)...)
			m.draftTitle.Reset()
			m.draftBody.Reset()
			m.flash("Note created")
		}
	case app.NoteLoadingStatusAction:
		if a.Status == app.NoteLoadingFailed {
			m.flash("Loading note failed")
		}
	case app.NoteSavingStatusAction:
		switch a.Status {
		case app.NoteSavingFailed:
			m.flash("Saving note failed")
		case app.NoteSaved:
			m.flash("Saved")
		}
	}
	m.syncView()
	if !m.minibufferAt.Equal(flashedAt) {
		cmd = tea.Batch(cmd, clearMinibufferCmd())
	}
	return cmd
}

func (m *appModel) flash(text string) {
	m.showMinibuffer(text)
}

func clearMinibufferCmd() tea.Cmd {
	return tea.Tick(minibufferAutoClearAfter, func(time.Time) tea.Msg { return minibufferTickMsg{} })
}

// restoreCmd reopens the note that was open when the same identity last quit.
func (m *appModel) restoreCmd() tea.Cmd {
	id := m.restoreNote
	m.restoreNote = ""
	sess, ok := m.state.Session()
	if id == "" || !ok || sess.DID != m.restoreDID {
		return nil
	}
	if _, ok := m.state.Notes[id]; !ok {
		return nil
	}
	return m.dispatch(m.env.OpenNote(m.state, id))
}

// syncView brings widgets in line with the state after an action.
func (m *appModel) syncView() {
	if !m.state.Authenticated() {
		m.focus = focusList
		m.seedInput.Focus()
		return
	}

	items := noteItems(m.state, m.order)
	m.notes.SetItems(items)
	current, onNote := m.state.CurrentNote()
	if onNote {
		for i, it := range items {
			if it.(noteItem).streamID == current {
				m.notes.Select(i)
				break
			}
		}
	}

	switch m.state.Nav.(type) {
	case app.NavDefault:
		m.setFocus(focusList)
	case app.NavDraft:
		if m.focus == focusList {
			m.setFocus(focusTitle)
		}
	case app.NavNote:
		stored, ok := m.state.Notes[current].(app.StoredNote)
		if !ok {
			if m.focus != focusList {
				m.setFocus(focusList)
			}
			return
		}
		if m.editorFor != current {
			m.editorFor = current
			text := ""
			if stored.Doc != nil {
				if note, err := stored.Doc.Note(); err == nil {
					text = note.Text
				}
			}
			m.noteBody.SetValue(text)
			m.setFocus(focusBody)
		}
	}
}

func (m *appModel) setFocus(f focus) {
	m.focus = f
	m.draftTitle.Blur()
	m.draftBody.Blur()
	m.noteBody.Blur()
	switch f {
	case focusTitle:
		m.draftTitle.Focus()
	case focusBody:
		if _, ok := m.state.Nav.(app.NavDraft); ok {
			m.draftBody.Focus()
		} else {
			m.noteBody.Focus()
		}
	}
}

func (m *appModel) authenticate() tea.Cmd {
	if app.StatusOf(m.state.Auth) == app.AuthLoading {
		return nil
	}
	seed, err := m.seed()
	if err != nil {
		m.flash(err.Error())
		return clearMinibufferCmd()
	}
	m.editorFor = ""
	return m.dispatch(m.env.Authenticate(seed))
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if !m.state.Authenticated() {
		switch msg.String() {
		case "enter":
			return m, m.authenticate()
		case "esc":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.seedInput, cmd = m.seedInput.Update(msg)
		return m, cmd
	}

	switch m.state.Nav.(type) {
	case app.NavDraft:
		return m.updateDraftKey(msg)
	case app.NavNote:
		return m.updateNoteKey(msg)
	default:
		return m.updateListKey(msg)
	}
}

func (m appModel) updateListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "n":
		return m, m.dispatch(app.OpenDraft())
	case "enter":
		it, ok := m.notes.SelectedItem().(noteItem)
		if !ok {
			return m, nil
		}
		return m, m.dispatch(m.env.OpenNote(m.state, it.streamID))
	case "r":
		if id, ok := m.state.CurrentNote(); ok {
			return m, m.dispatch(m.env.OpenNote(m.state, id))
		}
		return m, nil
	case "tab":
		if _, ok := m.state.Notes[m.editorFor].(app.StoredNote); ok {
			if id, onNote := m.state.CurrentNote(); onNote && id == m.editorFor {
				m.setFocus(focusBody)
			}
		}
		return m, nil
	case "esc":
		return m, m.dispatch(app.Dispatch{Now: []app.Action{app.NavResetAction{}}})
	}
	var cmd tea.Cmd
	m.notes, cmd = m.notes.Update(msg)
	return m, cmd
}

func (m appModel) updateDraftKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.draftTitle.Reset()
		m.draftBody.Reset()
		return m, m.dispatch(app.DeleteDraft())
	case "ctrl+s":
		if m.state.DraftStatus == app.DraftSaving {
			return m, nil
		}
		return m, m.dispatch(m.env.SaveDraft(m.state, strings.TrimSpace(m.draftTitle.Value()), m.draftBody.Value()))
	case "tab", "shift+tab":
		if m.focus == focusTitle {
			m.setFocus(focusBody)
		} else {
			m.setFocus(focusTitle)
		}
		return m, nil
	}
	return m.updateFocused(msg)
}

func (m appModel) updateNoteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus != focusBody {
		return m.updateListKey(msg)
	}
	switch msg.String() {
	case "esc", "tab":
		m.setFocus(focusList)
		return m, nil
	case "ctrl+p":
		m.preview = !m.preview
		return m, nil
	case "ctrl+s":
		id, _ := m.state.CurrentNote()
		stored, ok := m.state.Notes[id].(app.StoredNote)
		if !ok {
			return m, nil
		}
		return m, m.dispatch(m.env.SaveNote(m.state, stored.Doc, m.noteBody.Value()))
	}
	if m.preview {
		return m, nil
	}
	return m.updateFocused(msg)
}

func (m appModel) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if !m.state.Authenticated() {
		m.seedInput, cmd = m.seedInput.Update(msg)
		return m, cmd
	}
	switch m.focus {
	case focusTitle:
		m.draftTitle, cmd = m.draftTitle.Update(msg)
	case focusBody:
		if _, ok := m.state.Nav.(app.NavDraft); ok {
			m.draftBody, cmd = m.draftBody.Update(msg)
		} else {
			m.noteBody, cmd = m.noteBody.Update(msg)
		}
	default:
		m.notes, cmd = m.notes.Update(msg)
	}
	return m, cmd
}

func (m *appModel) resize(w, h int) {
	m.width, m.height = w, h
	listH := h - 4
	if listH < 3 {
		listH = 3
	}
	m.notes.SetSize(sidebarWidth, listH)

	mainW := w - sidebarWidth - 3
	if mainW < 20 {
		mainW = 20
	}
	bodyH := h - 9
	if bodyH < 3 {
		bodyH = 3
	}
	m.draftTitle.Width = mainW - 2
	m.draftBody.SetWidth(mainW)
	m.draftBody.SetHeight(bodyH)
	m.noteBody.SetWidth(mainW)
	m.noteBody.SetHeight(bodyH + 1)
}

func removeString(xs []string, s string) []string {
	out := xs[:0:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
