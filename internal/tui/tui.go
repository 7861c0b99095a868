// Package tui is the interactive note editor. It renders app.State and feeds key presses
// through the app dispatchers; effects run as tea commands.
package tui

import (
	"time"

	"tilenotes/internal/app"
	"tilenotes/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	Env app.Env
	// Seed pre-fills the identity prompt and authenticates on start.
	Seed    []byte
	Timeout time.Duration
	// State persists the last open note between runs. Zero value disables it.
	State  store.Store
	Glyphs string
	Logger *zap.Logger
}

func Run(opts Options) error {
	applyColorProfilePreference()
	m := newAppModel(opts)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if fm, ok := final.(appModel); ok {
		fm.persistTUIState()
	}
	return err
}
