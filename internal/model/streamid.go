package model

import (
	"errors"
	"fmt"
	"strings"
)

// StreamID names a versioned document. Version is empty for the latest state.
type StreamID struct {
	ID      string
	Version string
}

// ParseStreamID accepts the bare form ("k…") and the URL form
// ("ceramic://k…" or "ceramic://k…?version=<commit>").
func ParseStreamID(s string) (StreamID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StreamID{}, errors.New("stream id is empty")
	}
	raw := strings.TrimPrefix(s, StreamURLScheme)
	id, query, hasQuery := strings.Cut(raw, "?")
	out := StreamID{ID: id}
	if hasQuery {
		v, ok := strings.CutPrefix(query, "version=")
		if !ok || v == "" {
			return StreamID{}, fmt.Errorf("invalid stream url query: %q", s)
		}
		out.Version = v
	}
	if out.ID == "" || strings.ContainsAny(out.ID, "/ \t") {
		return StreamID{}, fmt.Errorf("invalid stream id: %q", s)
	}
	return out, nil
}

// String returns the bare id without a version.
func (s StreamID) String() string { return s.ID }

// URL returns the ceramic:// form, including the version when set.
func (s StreamID) URL() string {
	if s.Version != "" {
		return StreamURLScheme + s.ID + "?version=" + s.Version
	}
	return StreamURLScheme + s.ID
}

// AtCommit pins the id to a specific commit.
func (s StreamID) AtCommit(commit string) StreamID {
	return StreamID{ID: s.ID, Version: commit}
}

// Base drops the version.
func (s StreamID) Base() StreamID { return StreamID{ID: s.ID} }

func (s StreamID) IsZero() bool { return s.ID == "" }
