package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/exoplanet-explorer/backend/shared/protocol"
)

const statsInterval = 5 * time.Second

// handleStatsWS pushes a ChatStats snapshot every statsInterval until the
// client disconnects. The stream is one-way; inbound frames are drained only
// to detect the close.
func (s *Server) handleStatsWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("stats: upgrade failed", "error", err)
		return
	}
	conn := newConn(ws, r)
	defer ws.Close()

	s.hub.Subscribe(protocol.GroupStats, conn)
	defer s.hub.Unsubscribe(protocol.GroupStats, conn)

	if err := conn.Send(s.statsEnvelope()); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.SetReadLimit(maxMessageSize)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.Send(s.statsEnvelope()); err != nil {
				return
			}
		}
	}
}

func (s *Server) statsEnvelope() *protocol.Envelope {
	return protocol.NewEnvelope(protocol.GroupStats, protocol.TypeChatStats, protocol.ChatStats{
		Timestamp:   time.Now().Unix(),
		GroupCounts: s.hub.GroupCounts(),
		ChatClients: s.hub.ChatClients(),
	})
}
