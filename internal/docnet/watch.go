package docnet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"tilenotes/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Watch streams the state of id after every commit until ctx is done or the node
// closes the connection. The first message is the current state.
func (c *Client) Watch(ctx context.Context, id model.StreamID) (<-chan StreamState, error) {
	u, err := url.Parse(c.endpoint("/api/v0/streams/" + url.PathEscape(id.ID) + "/watch"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &HTTPError{Status: resp.StatusCode, Message: strings.TrimSpace(resp.Status)}
		}
		return nil, fmt.Errorf("watch %s: %w", id.String(), err)
	}

	out := make(chan StreamState, 8)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			mt, p, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warn("watch closed", zap.String("stream", id.String()), zap.Error(err))
				}
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			var st StreamState
			if err := json.Unmarshal(p, &st); err != nil {
				c.log.Warn("watch: bad message", zap.String("stream", id.String()), zap.Error(err))
				continue
			}
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
