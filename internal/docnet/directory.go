package docnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tilenotes/internal/model"
)

// IndexFamily tags the per-identity index stream that maps definitions to records.
const IndexFamily = "IDX"

// IDX is a keyed-document directory. Each identity owns one index stream mapping a
// definition id to a record stream; an alias names a definition through the
// definitions file.
type IDX struct {
	client  *Client
	did     string
	aliases map[string]string
}

func NewIDX(client *Client, did string, aliases map[string]string) *IDX {
	cp := make(map[string]string, len(aliases))
	for k, v := range aliases {
		cp[k] = v
	}
	return &IDX{client: client, did: did, aliases: cp}
}

func (x *IDX) DID() string { return x.did }

func (x *IDX) definitionID(alias string) (string, error) {
	if id, ok := x.aliases[alias]; ok && id != "" {
		sid, err := model.ParseStreamID(id)
		if err != nil {
			return "", fmt.Errorf("alias %q: %w", alias, err)
		}
		return sid.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
}

func (x *IDX) indexGenesis() (Genesis, error) {
	return NewGenesis(map[string]string{}, Metadata{Controllers: []string{x.did}, Family: IndexFamily}, true)
}

func (x *IDX) recordGenesis(defID string) (Genesis, error) {
	return NewGenesis(map[string]any{}, Metadata{Controllers: []string{x.did}, Family: defID}, true)
}

func (x *IDX) loadDeterministic(ctx context.Context, g Genesis) (*Document, error) {
	id, err := GenesisStreamID(g)
	if err != nil {
		return nil, err
	}
	doc, err := x.client.Load(ctx, model.StreamID{ID: id})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// Get loads the record content for alias into out. It reports false when the identity
// has never set the alias.
func (x *IDX) Get(ctx context.Context, alias string, out any) (bool, error) {
	defID, err := x.definitionID(alias)
	if err != nil {
		return false, err
	}
	g, err := x.indexGenesis()
	if err != nil {
		return false, err
	}
	index, err := x.loadDeterministic(ctx, g)
	if err != nil || index == nil {
		return false, err
	}
	var entries map[string]string
	if err := index.Decode(&entries); err != nil {
		return false, err
	}
	ref, ok := entries[defID]
	if !ok {
		return false, nil
	}
	recID, err := model.ParseStreamID(ref)
	if err != nil {
		return false, fmt.Errorf("index entry %s: %w", defID, err)
	}
	rec, err := x.client.Load(ctx, recID.Base())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rec.Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// Set writes v as the record for alias, creating the record and index entry on first use.
func (x *IDX) Set(ctx context.Context, alias string, v any) error {
	defID, err := x.definitionID(alias)
	if err != nil {
		return err
	}
	rg, err := x.recordGenesis(defID)
	if err != nil {
		return err
	}
	rec, err := x.client.CreateStream(ctx, rg)
	if err != nil {
		return err
	}
	if err := x.client.Update(ctx, rec, v); err != nil {
		return err
	}

	ig, err := x.indexGenesis()
	if err != nil {
		return err
	}
	index, err := x.client.CreateStream(ctx, ig)
	if err != nil {
		return err
	}
	entries := map[string]string{}
	if raw := index.Content(); len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("decode index: %w", err)
		}
	}
	if entries[defID] == rec.ID().URL() {
		return nil
	}
	entries[defID] = rec.ID().URL()
	return x.client.Update(ctx, index, entries)
}

// RecordID returns the record stream for alias, if it exists.
func (x *IDX) RecordID(ctx context.Context, alias string) (model.StreamID, bool, error) {
	defID, err := x.definitionID(alias)
	if err != nil {
		return model.StreamID{}, false, err
	}
	g, err := x.recordGenesis(defID)
	if err != nil {
		return model.StreamID{}, false, err
	}
	doc, err := x.loadDeterministic(ctx, g)
	if err != nil || doc == nil {
		return model.StreamID{}, false, err
	}
	return doc.ID(), true, nil
}
