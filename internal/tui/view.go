package tui

import (
	"strings"

	"tilenotes/internal/app"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

func (m appModel) View() string {
	w := m.width
	if w <= 0 {
		w = 80
	}

	var body string
	if !m.state.Authenticated() {
		body = m.viewAuth()
	} else {
		sep := styleMuted().Render(strings.Repeat(glyphSeparator()+"\n", max(1, m.notes.Height()-1)) + glyphSeparator())
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.notes.View(), " ", sep, " ", m.viewMain())
	}

	return strings.Join([]string{m.viewHeader(w), body, m.viewFooter(w)}, "\n")
}

func (m appModel) viewHeader(w int) string {
	left := styleHeading().Render("tilenotes")
	if sess, ok := m.state.Session(); ok {
		left += "  " + styleMuted().Render(sess.DID)
	}
	return xansi.Truncate(left, w, "…")
}

func (m appModel) viewFooter(w int) string {
	hints := m.keyHints()
	line := styleMuted().Render(hints)
	if m.minibuffer != "" {
		line = m.minibuffer + "  " + line
	}
	return xansi.Truncate(line, w, "…")
}

func (m appModel) keyHints() string {
	if !m.state.Authenticated() {
		return "enter authenticate  esc quit"
	}
	switch m.state.Nav.(type) {
	case app.NavDraft:
		return "ctrl+s save  tab switch field  esc discard"
	case app.NavNote:
		if m.focus == focusBody {
			return "ctrl+s save  ctrl+p preview  esc/tab back to list"
		}
		return "enter open  n new  tab edit  r retry  esc close  q quit"
	}
	return "enter open  n new  q quit"
}

func (m appModel) viewAuth() string {
	var b strings.Builder
	b.WriteString("\n" + styleHeading().Render("Authenticate") + "\n\n")
	b.WriteString("Identity seed\n")
	b.WriteString(m.seedInput.View() + "\n\n")
	switch app.StatusOf(m.state.Auth) {
	case app.AuthLoading:
		b.WriteString(styleMuted().Render("Authenticating" + glyphPending()))
	case app.AuthFailed:
		b.WriteString(styleError().Render("Authentication failed. Check the seed and the node, then press enter to retry."))
	}
	return b.String()
}

func (m appModel) viewMain() string {
	switch nav := m.state.Nav.(type) {
	case app.NavDraft:
		return m.viewDraft()
	case app.NavNote:
		return m.viewNote(nav.StreamID)
	}
	return "\n" + styleMuted().Render("Select a note, or press n to write a new one.")
}

func (m appModel) viewDraft() string {
	var b strings.Builder
	b.WriteString(styleHeading().Render("New note") + "\n\n")
	b.WriteString(m.draftTitle.View() + "\n\n")
	b.WriteString(m.draftBody.View() + "\n")
	switch m.state.DraftStatus {
	case app.DraftSaving:
		b.WriteString(styleMuted().Render("Saving" + glyphPending()))
	case app.DraftFailed:
		b.WriteString(styleError().Render("Failed to save note"))
	}
	return b.String()
}

func (m appModel) viewNote(id string) string {
	entry, ok := m.state.Notes[id]
	if !ok {
		return "\n" + styleMuted().Render("Loading note"+glyphPending())
	}

	var b strings.Builder
	title := strings.TrimSpace(entry.NoteTitle())
	if title == "" {
		title = "(untitled)"
	}
	b.WriteString(styleHeading().Render(title) + "\n\n")

	switch e := entry.(type) {
	case app.IndexLoadedNote:
		if e.Status == app.NoteLoadingFailed {
			b.WriteString(styleError().Render("Failed to load note. Press r to retry."))
		} else {
			b.WriteString(styleMuted().Render("Loading note" + glyphPending()))
		}
	case app.StoredNote:
		if m.preview {
			b.WriteString(renderMarkdown(m.noteBody.Value(), m.noteBody.Width()) + "\n")
		} else {
			b.WriteString(m.noteBody.View() + "\n")
		}
		switch e.Status {
		case app.NoteSaving:
			b.WriteString(styleMuted().Render("Saving" + glyphPending()))
		case app.NoteSavingFailed:
			b.WriteString(styleError().Render("Failed to save note"))
		case app.NoteSaved:
			b.WriteString(styleOK().Render(glyphSaved() + " Saved"))
		}
	}
	return b.String()
}
