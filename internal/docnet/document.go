package docnet

import (
	"encoding/json"
	"fmt"
	"sync"

	"tilenotes/internal/model"
)

// Document is a live handle to a stream. Update refreshes it in place, so callers
// holding the same handle observe the latest content.
type Document struct {
	id       model.StreamID
	metadata Metadata

	mu      sync.RWMutex
	content json.RawMessage
	commit  string
	log     []string
}

// NewDocument builds a handle from a stream state returned by a node.
func NewDocument(st StreamState) (*Document, error) {
	id, err := model.ParseStreamID(st.StreamID)
	if err != nil {
		return nil, err
	}
	d := &Document{id: id.Base(), metadata: st.Metadata}
	d.apply(st)
	return d, nil
}

func (d *Document) apply(st StreamState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = append(json.RawMessage(nil), st.Content...)
	d.commit = st.CommitID
	d.log = append([]string(nil), st.Log...)
}

func (d *Document) ID() model.StreamID { return d.id }

func (d *Document) Metadata() Metadata { return d.metadata }

// CommitID returns the commit the handle currently reflects.
func (d *Document) CommitID() model.StreamID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id.AtCommit(d.commit)
}

func (d *Document) Log() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.log...)
}

func (d *Document) Content() json.RawMessage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(json.RawMessage(nil), d.content...)
}

// Decode unmarshals the current content into v.
func (d *Document) Decode(v any) error {
	if err := json.Unmarshal(d.Content(), v); err != nil {
		return fmt.Errorf("decode %s: %w", d.id, err)
	}
	return nil
}

// Note decodes the content as a note body.
func (d *Document) Note() (model.NoteContent, error) {
	var c model.NoteContent
	err := d.Decode(&c)
	return c, err
}
