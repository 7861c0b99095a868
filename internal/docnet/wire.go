package docnet

import "encoding/json"

// Metadata is the stream header shared by every commit of a stream.
type Metadata struct {
	Controllers []string `json:"controllers" cbor:"controllers"`
	Schema      string   `json:"schema,omitempty" cbor:"schema,omitempty"`
	Family      string   `json:"family,omitempty" cbor:"family,omitempty"`
}

// Controller returns the first controller or "".
func (m Metadata) Controller() string {
	if len(m.Controllers) == 0 {
		return ""
	}
	return m.Controllers[0]
}

type GenesisHeader struct {
	Metadata
	// Nonce is empty for deterministic streams.
	Nonce string `json:"nonce,omitempty" cbor:"nonce,omitempty"`
}

type Genesis struct {
	Header  GenesisHeader   `json:"header"`
	Content json.RawMessage `json:"content"`
}

// StreamState is the node's view of a stream at one commit.
type StreamState struct {
	StreamID string          `json:"streamId"`
	Metadata Metadata        `json:"metadata"`
	Content  json.RawMessage `json:"content"`
	// CommitID is the commit this state reflects.
	CommitID string `json:"commitId"`
	// Log lists every commit id, oldest first.
	Log []string `json:"log"`
}

type CreateStreamRequest struct {
	Genesis Genesis `json:"genesis"`
}

type UpdateStreamRequest struct {
	Content json.RawMessage `json:"content"`
}

type AuthResponse struct {
	DID string `json:"did"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
