// Package docnettest builds detached documents for fakes of the docnet capabilities.
package docnettest

import (
	"encoding/json"
	"fmt"
	"testing"

	"tilenotes/internal/docnet"
)

// InitialCommit is the commit id every detached document starts at.
const InitialCommit = "c0"

// Document returns a handle for stream id holding content at InitialCommit.
func Document(id string, content any) (*docnet.Document, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return docnet.NewDocument(docnet.StreamState{
		StreamID: id,
		Content:  raw,
		CommitID: InitialCommit,
		Log:      []string{InitialCommit},
	})
}

func MustDocument(t testing.TB, id string, content any) *docnet.Document {
	t.Helper()
	d, err := Document(id, content)
	if err != nil {
		t.Fatalf("build document: %v", err)
	}
	return d
}
