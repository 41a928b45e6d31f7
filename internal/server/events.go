package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// writeTimeout bounds one update write to a websocket client.
const writeTimeout = 10 * time.Second

// handleEvents streams session updates to a websocket client until either
// side closes. Clients only listen; anything they send is discarded.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so a client that has
	// connected never misses an update.
	updates, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	s.logger.Debug("events client connected", slog.String("remote", r.RemoteAddr))

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, u)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Debug("events client write failed", slog.Any("error", err))
				}
				return
			}
		}
	}
}
