// Package docnet is the client side of the document network: authentication, the
// document store and the keyed-document directory.
package docnet

import (
	"context"
	"fmt"
	"net/http"

	"tilenotes/internal/did"
	"tilenotes/internal/model"

	"go.uber.org/zap"
)

// Authenticator turns a seed into an authenticated session.
type Authenticator interface {
	Authenticate(ctx context.Context, seed []byte) (*Session, error)
}

// DocumentStore creates, loads and updates documents.
type DocumentStore interface {
	Create(ctx context.Context, content any, meta Metadata) (*Document, error)
	Load(ctx context.Context, id model.StreamID) (*Document, error)
	Update(ctx context.Context, doc *Document, content any) error
}

// Directory reads and writes per-identity records by alias.
type Directory interface {
	Get(ctx context.Context, alias string, out any) (bool, error)
	Set(ctx context.Context, alias string, v any) error
}

// Session holds the handles produced by a successful authentication.
type Session struct {
	DID  string
	Docs DocumentStore
	Dir  Directory
}

// Network authenticates against a node using the aliases from the definitions file.
type Network struct {
	NodeURL     string
	Definitions model.Definitions
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

var _ Authenticator = (*Network)(nil)

func (n *Network) Authenticate(ctx context.Context, seed []byte) (*Session, error) {
	key, err := did.FromSeed(seed)
	if err != nil {
		return nil, err
	}
	var opts []Option
	if n.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(n.HTTPClient))
	}
	if n.Logger != nil {
		opts = append(opts, WithLogger(n.Logger))
	}
	c, err := NewClient(n.NodeURL, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx, key); err != nil {
		return nil, err
	}
	if len(n.Definitions.Definitions) == 0 {
		return nil, fmt.Errorf("no definitions configured; run bootstrap first")
	}
	return &Session{
		DID:  key.DID(),
		Docs: c,
		Dir:  NewIDX(c, key.DID(), n.Definitions.Definitions),
	}, nil
}
