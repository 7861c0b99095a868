package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tilenotes/internal/did"
	"tilenotes/internal/docnet"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxRequestSize = 1 << 20

type ctxKey int

const didCtxKey ctxKey = iota

type Server struct {
	store *Store
	log   *zap.Logger
	now   func() time.Time
	hub   *hub

	upgrader websocket.Upgrader
}

func NewServer(store *Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store: store,
		log:   log,
		now:   time.Now,
		hub:   newHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.Methods(http.MethodPost).Path("/api/v0/auth").Handler(s.requireDID(http.HandlerFunc(s.handleAuth)))
	r.Methods(http.MethodPost).Path("/api/v0/streams").Handler(s.requireDID(http.HandlerFunc(s.handleCreate)))
	r.Methods(http.MethodGet).Path("/api/v0/streams/{id}").HandlerFunc(s.handleGet)
	r.Methods(http.MethodPost).Path("/api/v0/streams/{id}/commits").Handler(s.requireDID(http.HandlerFunc(s.handleUpdate)))
	r.Methods(http.MethodGet).Path("/api/v0/streams/{id}/watch").HandlerFunc(s.handleWatch)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("node listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Info("handled",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.Duration("duration", m.Duration),
			zap.Int("status", m.Code),
		)
	})
}

func (s *Server) requireDID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := did.VerifyToken(strings.TrimSpace(tok), s.now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), didCtxKey, id)))
	})
}

func requestDID(r *http.Request) string {
	v, _ := r.Context().Value(didCtxKey).(string)
	return v
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, docnet.AuthResponse{DID: requestDID(r)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req docnet.CreateStreamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	author := requestDID(r)
	ctrl := req.Genesis.Header.Controllers
	if len(ctrl) != 1 || ctrl[0] != author {
		writeError(w, http.StatusForbidden, "genesis controller must be the authenticated did")
		return
	}
	st, created, err := s.store.Create(r.Context(), req.Genesis, author)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.log.Info("stream created", zap.String("stream", st.StreamID), zap.String("did", author), zap.String("family", st.Metadata.Family))
	}
	writeJSON(w, status, st)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, err := s.store.Get(r.Context(), id, r.URL.Query().Get("version"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req docnet.UpdateStreamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	st, err := s.store.Update(r.Context(), id, req.Content, requestDID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.hub.publish(st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st, err := s.store.Get(r.Context(), id, "")
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("watch upgrade failed", zap.String("stream", id), zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.hub.subscribe(id)
	defer s.hub.unsubscribe(id, sub)

	// Reader goroutine only detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(st); err != nil {
		return
	}
	for {
		select {
		case next, ok := <-sub:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "node shutting down"))
				return
			}
			if err := conn.WriteJSON(next); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoVersion):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.log.Error("store error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if len(b) > maxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, docnet.ErrorResponse{Error: msg})
}

// hub fans out committed states to watchers of a stream.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan docnet.StreamState]struct{}
}

func newHub() *hub {
	return &hub{subs: map[string]map[chan docnet.StreamState]struct{}{}}
}

func (h *hub) subscribe(id string) chan docnet.StreamState {
	ch := make(chan docnet.StreamState, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[id] == nil {
		h.subs[id] = map[chan docnet.StreamState]struct{}{}
	}
	h.subs[id][ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(id string, ch chan docnet.StreamState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[id]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// publish never blocks: a watcher that falls behind misses intermediate states.
func (h *hub) publish(st docnet.StreamState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[st.StreamID] {
		select {
		case ch <- st:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, id)
	}
}
