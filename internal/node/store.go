// Package node is a development document node: it stores streams in SQLite, keeps each
// stream's content history in an automerge document and serves the HTTP API the
// client in internal/docnet speaks.
package node

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tilenotes/internal/docnet"

	"github.com/automerge/automerge-go"
	"github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("stream not found")
	ErrForbidden = errors.New("not a controller of this stream")
	ErrNoVersion = errors.New("unknown version")
)

const contentKey = "content"

type Store struct {
	db *sql.DB
	// docs caches decoded automerge documents by stream id.
	docs *cache.Cache

	mu  sync.Mutex
	now func() time.Time
}

func OpenStore(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent and writes serialized.
	db.SetMaxOpenConns(1)
	s := &Store{
		db:   db,
		docs: cache.New(10*time.Minute, 5*time.Minute),
		now:  time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS streams (
			id TEXT PRIMARY KEY,
			genesis BLOB NOT NULL,
			metadata TEXT NOT NULL,
			doc BLOB NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS commits (
			stream_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			commit_id TEXT NOT NULL,
			author TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			PRIMARY KEY (stream_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS commits_by_id ON commits(commit_id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Create stores a genesis commit. It returns created=false with the existing state when
// the stream already exists (deterministic genesis).
func (s *Store) Create(ctx context.Context, g docnet.Genesis, author string) (docnet.StreamState, bool, error) {
	id, err := docnet.GenesisStreamID(g)
	if err != nil {
		return docnet.StreamState{}, false, err
	}
	genesis, err := docnet.EncodeGenesis(g)
	if err != nil {
		return docnet.StreamState{}, false, err
	}
	content, err := normalizeContent(g.Content)
	if err != nil {
		return docnet.StreamState{}, false, err
	}
	meta, err := json.Marshal(g.Header.Metadata)
	if err != nil {
		return docnet.StreamState{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, err := s.stateLocked(ctx, id, ""); err == nil {
		return st, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return docnet.StreamState{}, false, err
	}

	doc := automerge.New()
	if err := doc.Path(contentKey).Set(string(content)); err != nil {
		return docnet.StreamState{}, false, err
	}
	head, err := doc.Commit("genesis", automerge.CommitOptions{AllowEmpty: true})
	if err != nil {
		return docnet.StreamState{}, false, err
	}

	nowMs := s.now().UTC().UnixMilli()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return docnet.StreamState{}, false, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO streams(id, genesis, metadata, doc, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		id, genesis, string(meta), doc.Save(), nowMs, nowMs); err != nil {
		return docnet.StreamState{}, false, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO commits(stream_id, seq, commit_id, author, created_at_unixms) VALUES(?, 0, ?, ?, ?)`,
		id, head.String(), author, nowMs); err != nil {
		return docnet.StreamState{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return docnet.StreamState{}, false, err
	}
	s.docs.Set(id, doc, cache.DefaultExpiration)

	return docnet.StreamState{
		StreamID: id,
		Metadata: g.Header.Metadata,
		Content:  content,
		CommitID: head.String(),
		Log:      []string{head.String()},
	}, true, nil
}

// Get returns the latest state, or the state at version when non-empty.
func (s *Store) Get(ctx context.Context, id, version string) (docnet.StreamState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(ctx, id, version)
}

// Update appends a commit replacing the content. Only a controller may update.
func (s *Store) Update(ctx context.Context, id string, content json.RawMessage, author string) (docnet.StreamState, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return docnet.StreamState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.metadataLocked(ctx, id)
	if err != nil {
		return docnet.StreamState{}, err
	}
	if !isController(meta, author) {
		return docnet.StreamState{}, ErrForbidden
	}
	doc, err := s.docLocked(ctx, id)
	if err != nil {
		return docnet.StreamState{}, err
	}
	// The cached doc is edited in place; a write that does not reach the database must
	// not stay visible through it.
	committed := false
	defer func() {
		if !committed {
			s.docs.Delete(id)
		}
	}()
	if err := doc.Path(contentKey).Set(string(content)); err != nil {
		return docnet.StreamState{}, err
	}
	head, err := doc.Commit("update", automerge.CommitOptions{AllowEmpty: true})
	if err != nil {
		return docnet.StreamState{}, err
	}

	nowMs := s.now().UTC().UnixMilli()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return docnet.StreamState{}, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE streams SET doc = ?, updated_at_unixms = ? WHERE id = ?`, doc.Save(), nowMs, id); err != nil {
		return docnet.StreamState{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO commits(stream_id, seq, commit_id, author, created_at_unixms)
		 VALUES(?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM commits WHERE stream_id = ?), ?, ?, ?)`,
		id, id, head.String(), author, nowMs); err != nil {
		return docnet.StreamState{}, err
	}
	if err := tx.Commit(); err != nil {
		return docnet.StreamState{}, err
	}
	committed = true
	return s.stateLocked(ctx, id, "")
}

func (s *Store) metadataLocked(ctx context.Context, id string) (docnet.Metadata, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM streams WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docnet.Metadata{}, ErrNotFound
	}
	if err != nil {
		return docnet.Metadata{}, err
	}
	var meta docnet.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return docnet.Metadata{}, fmt.Errorf("stream %s metadata: %w", id, err)
	}
	return meta, nil
}

func (s *Store) docLocked(ctx context.Context, id string) (*automerge.Doc, error) {
	if v, ok := s.docs.Get(id); ok {
		return v.(*automerge.Doc), nil
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM streams WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("stream %s: load doc: %w", id, err)
	}
	s.docs.Set(id, doc, cache.DefaultExpiration)
	return doc, nil
}

func (s *Store) logLocked(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT commit_id FROM commits WHERE stream_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) stateLocked(ctx context.Context, id, version string) (docnet.StreamState, error) {
	meta, err := s.metadataLocked(ctx, id)
	if err != nil {
		return docnet.StreamState{}, err
	}
	doc, err := s.docLocked(ctx, id)
	if err != nil {
		return docnet.StreamState{}, err
	}
	log, err := s.logLocked(ctx, id)
	if err != nil {
		return docnet.StreamState{}, err
	}
	if len(log) == 0 {
		return docnet.StreamState{}, fmt.Errorf("stream %s has no commits", id)
	}

	commit := log[len(log)-1]
	view := doc
	if version != "" && version != commit {
		view, err = forkAt(doc, version)
		if err != nil {
			return docnet.StreamState{}, err
		}
		commit = version
		for i, c := range log {
			if c == version {
				log = log[:i+1]
				break
			}
		}
	}
	content, err := automerge.As[string](view.Path(contentKey).Get())
	if err != nil {
		return docnet.StreamState{}, fmt.Errorf("stream %s: read content: %w", id, err)
	}
	return docnet.StreamState{
		StreamID: id,
		Metadata: meta,
		Content:  json.RawMessage(content),
		CommitID: commit,
		Log:      log,
	}, nil
}

func forkAt(doc *automerge.Doc, version string) (*automerge.Doc, error) {
	changes, err := doc.Changes()
	if err != nil {
		return nil, err
	}
	for _, ch := range changes {
		if ch.Hash().String() == version {
			return doc.Fork(ch.Hash())
		}
	}
	return nil, ErrNoVersion
}

func isController(meta docnet.Metadata, author string) bool {
	for _, c := range meta.Controllers {
		if c == author {
			return true
		}
	}
	return false
}

// normalizeContent validates JSON and compacts it; empty content becomes {}.
func normalizeContent(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("content is not json: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
