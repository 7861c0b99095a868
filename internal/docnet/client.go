package docnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"tilenotes/internal/did"
	"tilenotes/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultNodeURL  = "http://localhost:7007"
	defaultTokenTTL = time.Hour
	maxResponseSize = 8 << 20
)

// Client talks to a document node over its HTTP API. Reads work anonymously; writes
// require Authenticate.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	key      *did.Key
	token    string
	tokenExp time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func NewClient(nodeURL string, opts ...Option) (*Client, error) {
	nodeURL = strings.TrimSpace(nodeURL)
	if nodeURL == "" {
		nodeURL = DefaultNodeURL
	}
	u, err := url.Parse(nodeURL)
	if err != nil {
		return nil, fmt.Errorf("node url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("node url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 60 * time.Second},
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) NodeURL() string { return c.base.String() }

// DID returns the authenticated identity or "".
func (c *Client) DID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return ""
	}
	return c.key.DID()
}

// Authenticate proves control of key to the node and keeps it for later writes.
func (c *Client) Authenticate(ctx context.Context, key *did.Key) error {
	c.mu.Lock()
	c.key = key
	c.token = ""
	c.mu.Unlock()

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v0/auth", nil, true, &resp); err != nil {
		c.mu.Lock()
		c.key = nil
		c.mu.Unlock()
		return fmt.Errorf("authenticate: %w", err)
	}
	if resp.DID != key.DID() {
		c.mu.Lock()
		c.key = nil
		c.mu.Unlock()
		return fmt.Errorf("authenticate: node accepted %q; expected %q", resp.DID, key.DID())
	}
	c.log.Info("authenticated", zap.String("did", resp.DID), zap.String("node", c.base.String()))
	return nil
}

// CreateStream publishes a genesis commit. Deterministic streams that already exist are
// returned as-is.
func (c *Client) CreateStream(ctx context.Context, g Genesis) (*Document, error) {
	var st StreamState
	if err := c.do(ctx, http.MethodPost, "/api/v0/streams", CreateStreamRequest{Genesis: g}, true, &st); err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return NewDocument(st)
}

// Create makes a new (non-deterministic) stream with content.
func (c *Client) Create(ctx context.Context, content any, meta Metadata) (*Document, error) {
	g, err := NewGenesis(content, meta, false)
	if err != nil {
		return nil, err
	}
	return c.CreateStream(ctx, g)
}

// Load fetches the latest state, or the pinned commit when id carries a version.
func (c *Client) Load(ctx context.Context, id model.StreamID) (*Document, error) {
	if id.IsZero() {
		return nil, errors.New("load: empty stream id")
	}
	path := "/api/v0/streams/" + url.PathEscape(id.ID)
	if id.Version != "" {
		path += "?version=" + url.QueryEscape(id.Version)
	}
	var st StreamState
	if err := c.do(ctx, http.MethodGet, path, nil, false, &st); err != nil {
		return nil, fmt.Errorf("load %s: %w", id.String(), err)
	}
	return NewDocument(st)
}

// Update appends a commit replacing the content and refreshes doc.
func (c *Client) Update(ctx context.Context, doc *Document, content any) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	var st StreamState
	path := "/api/v0/streams/" + url.PathEscape(doc.ID().ID) + "/commits"
	if err := c.do(ctx, http.MethodPost, path, UpdateStreamRequest{Content: raw}, true, &st); err != nil {
		return fmt.Errorf("update %s: %w", doc.ID().String(), err)
	}
	doc.apply(st)
	return nil
}

func (c *Client) bearer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return "", ErrNotAuthenticated
	}
	now := c.now()
	// Refresh a little early so a token never expires mid-request.
	if c.token == "" || now.Add(time.Minute).After(c.tokenExp) {
		tok, err := c.key.SignToken(defaultTokenTTL, now)
		if err != nil {
			return "", err
		}
		c.token = tok
		c.tokenExp = now.Add(defaultTokenTTL)
	}
	return c.token, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.base.String(), "/") + path
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		tok, err := c.bearer()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	c.log.Debug("node request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", c.now().Sub(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er ErrorResponse
		_ = json.Unmarshal(raw, &er)
		return &HTTPError{Status: resp.StatusCode, Message: er.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
