package tui

import (
	"os"
	"strings"
	"sync"
)

// Some terminals and fonts render box and status glyphs poorly, so an ASCII set is
// available through config ("tui.glyphs") or TILENOTES_TUI_GLYPHS.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

func applyGlyphPreference(configured string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TILENOTES_TUI_GLYPHS")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(configured))
	}
	switch v {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	default:
		// Unknown value: ignore.
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func glyphBullet() string {
	if glyphs() == glyphSetASCII {
		return "*"
	}
	return "•"
}

func glyphPending() string {
	if glyphs() == glyphSetASCII {
		return "..."
	}
	return "…"
}

func glyphFailed() string {
	if glyphs() == glyphSetASCII {
		return "!"
	}
	return "✗"
}

func glyphSaved() string {
	if glyphs() == glyphSetASCII {
		return "+"
	}
	return "✓"
}

func glyphSeparator() string {
	if glyphs() == glyphSetASCII {
		return "|"
	}
	return "│"
}
