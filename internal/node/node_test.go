package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tilenotes/internal/did"
	"tilenotes/internal/docnet"
	"tilenotes/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "node.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testKey(t *testing.T) *did.Key {
	t.Helper()
	seed, err := did.GenerateSeed()
	require.NoError(t, err)
	k, err := did.FromSeed(seed)
	require.NoError(t, err)
	return k
}

func TestStore_CreateGetUpdateAndVersions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	g, err := docnet.NewGenesis(map[string]string{"text": "v1"}, docnet.Metadata{Controllers: []string{"did:key:zA"}}, false)
	require.NoError(t, err)

	st, created, err := s.Create(ctx, g, "did:key:zA")
	require.NoError(t, err)
	assert.True(t, created)
	assert.JSONEq(t, `{"text":"v1"}`, string(st.Content))
	require.Len(t, st.Log, 1)
	first := st.CommitID

	st2, err := s.Update(ctx, st.StreamID, json.RawMessage(`{"text":"v2"}`), "did:key:zA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"v2"}`, string(st2.Content))
	require.Len(t, st2.Log, 2)
	assert.NotEqual(t, first, st2.CommitID)

	old, err := s.Get(ctx, st.StreamID, first)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"v1"}`, string(old.Content))
	assert.Equal(t, []string{first}, old.Log)

	_, err = s.Get(ctx, st.StreamID, "nope")
	require.ErrorIs(t, err, ErrNoVersion)

	_, err = s.Get(ctx, "kmissing", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateRequiresController(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	g, err := docnet.NewGenesis(map[string]string{}, docnet.Metadata{Controllers: []string{"did:key:zA"}}, false)
	require.NoError(t, err)
	st, _, err := s.Create(ctx, g, "did:key:zA")
	require.NoError(t, err)

	_, err = s.Update(ctx, st.StreamID, json.RawMessage(`{}`), "did:key:zB")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestStore_DeterministicCreateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	meta := docnet.Metadata{Controllers: []string{"did:key:zA"}, Family: "IDX"}
	g, err := docnet.NewGenesis(map[string]string{}, meta, true)
	require.NoError(t, err)

	a, created, err := s.Create(ctx, g, "did:key:zA")
	require.NoError(t, err)
	require.True(t, created)
	_, err = s.Update(ctx, a.StreamID, json.RawMessage(`{"x":"1"}`), "did:key:zA")
	require.NoError(t, err)

	b, created, err := s.Create(ctx, g, "did:key:zA")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.StreamID, b.StreamID)
	assert.JSONEq(t, `{"x":"1"}`, string(b.Content))
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "node.sqlite")
	s, err := OpenStore(ctx, path)
	require.NoError(t, err)

	g, err := docnet.NewGenesis(map[string]string{"a": "b"}, docnet.Metadata{Controllers: []string{"did:key:zA"}}, false)
	require.NoError(t, err)
	st, _, err := s.Create(ctx, g, "did:key:zA")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenStore(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, st.StreamID, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(got.Content))
	assert.Equal(t, st.CommitID, got.CommitID)
}

func TestStore_FailedUpdateLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	g, err := docnet.NewGenesis(map[string]string{"text": "v1"}, docnet.Metadata{Controllers: []string{"did:key:zA"}}, false)
	require.NoError(t, err)
	st, _, err := s.Create(ctx, g, "did:key:zA")
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `CREATE TRIGGER reject_commits BEFORE INSERT ON commits
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)
	_, err = s.Update(ctx, st.StreamID, json.RawMessage(`{"text":"lost"}`), "did:key:zA")
	require.Error(t, err)
	_, err = s.db.ExecContext(ctx, `DROP TRIGGER reject_commits`)
	require.NoError(t, err)

	got, err := s.Get(ctx, st.StreamID, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"v1"}`, string(got.Content))
	assert.Equal(t, st.CommitID, got.CommitID)
	assert.Equal(t, []string{st.CommitID}, got.Log)

	// A cancelled request fails before the transaction starts.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Update(cancelled, st.StreamID, json.RawMessage(`{"text":"lost"}`), "did:key:zA")
	require.Error(t, err)

	next, err := s.Update(ctx, st.StreamID, json.RawMessage(`{"text":"v2"}`), "did:key:zA")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"v2"}`, string(next.Content))
	require.Len(t, next.Log, 2)

	old, err := s.Get(ctx, st.StreamID, st.CommitID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"v1"}`, string(old.Content))
}

func newTestNode(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(openTestStore(t), nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_RejectsMissingAndForeignTokens(t *testing.T) {
	srv := newTestNode(t)

	resp, err := http.Post(srv.URL+"/api/v0/auth", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A genesis naming someone else as controller is refused.
	ctx := context.Background()
	c, err := docnet.NewClient(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.Authenticate(ctx, testKey(t)))
	g, err := docnet.NewGenesis(map[string]string{}, docnet.Metadata{Controllers: []string{"did:key:zOther"}}, false)
	require.NoError(t, err)
	_, err = c.CreateStream(ctx, g)
	require.ErrorIs(t, err, docnet.ErrUnauthorized)
}

func TestServer_ClientRoundTrip(t *testing.T) {
	srv := newTestNode(t)
	ctx := context.Background()
	key := testKey(t)

	c, err := docnet.NewClient(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.Authenticate(ctx, key))
	assert.Equal(t, key.DID(), c.DID())

	doc, err := c.Create(ctx, model.NoteContent{Date: "d1", Text: "hello"}, docnet.Metadata{Controllers: []string{key.DID()}, Schema: "ceramic://kschema?version=c"})
	require.NoError(t, err)
	require.NoError(t, c.Update(ctx, doc, model.NoteContent{Date: "d2", Text: "world"}))

	note, err := doc.Note()
	require.NoError(t, err)
	assert.Equal(t, "world", note.Text)
	require.Len(t, doc.Log(), 2)

	loaded, err := c.Load(ctx, doc.ID())
	require.NoError(t, err)
	n2, err := loaded.Note()
	require.NoError(t, err)
	assert.Equal(t, "world", n2.Text)
	assert.Equal(t, "ceramic://kschema?version=c", loaded.Metadata().Schema)

	pinned, err := c.Load(ctx, doc.ID().AtCommit(doc.Log()[0]))
	require.NoError(t, err)
	n1, err := pinned.Note()
	require.NoError(t, err)
	assert.Equal(t, "hello", n1.Text)

	_, err = c.Load(ctx, model.StreamID{ID: "kmissing"})
	require.ErrorIs(t, err, docnet.ErrNotFound)
}

func TestServer_WatchPushesCommits(t *testing.T) {
	srv := newTestNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	key := testKey(t)

	c, err := docnet.NewClient(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.Authenticate(ctx, key))
	doc, err := c.Create(ctx, map[string]string{"n": "0"}, docnet.Metadata{Controllers: []string{key.DID()}})
	require.NoError(t, err)

	ch, err := c.Watch(ctx, doc.ID())
	require.NoError(t, err)

	first := <-ch
	assert.JSONEq(t, `{"n":"0"}`, string(first.Content))

	require.NoError(t, c.Update(ctx, doc, map[string]string{"n": "1"}))
	select {
	case next := <-ch:
		assert.JSONEq(t, `{"n":"1"}`, string(next.Content))
	case <-ctx.Done():
		t.Fatal("timed out waiting for watch update")
	}
}
