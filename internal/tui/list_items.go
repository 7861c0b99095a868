package tui

import (
	"fmt"
	"io"
	"strings"

	"tilenotes/internal/app"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type noteItem struct {
	streamID string
	entry    app.NoteEntry
	current  bool
}

func (i noteItem) FilterValue() string { return i.entry.NoteTitle() }

func (i noteItem) Title() string {
	title := strings.TrimSpace(i.entry.NoteTitle())
	if title == "" {
		title = "(untitled)"
	}
	if i.current {
		title = glyphBullet() + " " + title
	}
	if mark := statusMark(i.entry); mark != "" {
		title += " " + mark
	}
	return title
}

func (i noteItem) Description() string { return i.streamID }

func statusMark(e app.NoteEntry) string {
	switch n := e.(type) {
	case app.IndexLoadedNote:
		switch n.Status {
		case app.NoteLoading:
			return glyphPending()
		case app.NoteLoadingFailed:
			return glyphFailed()
		}
	case app.StoredNote:
		switch n.Status {
		case app.NoteSaving:
			return glyphPending()
		case app.NoteSavingFailed:
			return glyphFailed()
		case app.NoteSaved:
			return glyphSaved()
		}
	}
	return ""
}

// noteItems lists entries in display order: order first, then any remaining keys.
func noteItems(s app.State, order []string) []list.Item {
	current, _ := s.CurrentNote()
	seen := map[string]bool{}
	items := make([]list.Item, 0, len(s.Notes))
	for _, id := range order {
		e, ok := s.Notes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		items = append(items, noteItem{streamID: id, entry: e, current: id == current})
	}
	for _, id := range sortedKeys(s.Notes) {
		if seen[id] {
			continue
		}
		items = append(items, noteItem{streamID: id, entry: s.Notes[id], current: id == current})
	}
	return items
}

type compactItemDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
}

func newCompactItemDelegate() compactItemDelegate {
	return compactItemDelegate{
		normal: lipgloss.NewStyle(),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
	}
}

func (d compactItemDelegate) Height() int  { return 1 }
func (d compactItemDelegate) Spacing() int { return 0 }
func (d compactItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d compactItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	contentW := m.Width()
	if contentW < 4 {
		fmt.Fprint(w, "")
		return
	}

	style := d.normal
	if index == m.Index() {
		style = d.selected
	}

	txt := ""
	if t, ok := item.(interface{ Title() string }); ok {
		txt = t.Title()
	} else {
		txt = fmt.Sprint(item)
	}

	line := txt
	lineW := xansi.StringWidth(line)
	if lineW < contentW {
		line += strings.Repeat(" ", contentW-lineW)
	} else if lineW > contentW {
		line = xansi.Truncate(line, contentW, "")
	}

	fmt.Fprint(w, style.Render(line))
}
