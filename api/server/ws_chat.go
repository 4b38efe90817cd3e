package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/exoplanet-explorer/backend/shared/id"
	"github.com/exoplanet-explorer/backend/shared/protocol"
)

// bannedWords are masked with asterisks before a chat message is relayed.
var bannedWords = []string{"spam", "hack", "virus"}

// astronomyKeywords tag a message with the astronomy category and a star.
var astronomyKeywords = []string{"exoplanet", "kepler", "tess", "planeta", "estrella", "nasa"}

// filterMessage masks banned words and detects astronomy topics. Matching is
// case-insensitive and rune-wise, so multi-byte characters whose lowercase
// form has a different byte length never shift the mask. Returns the cleaned
// text and the category ("" when none matched).
func filterMessage(content string) (string, string) {
	runes := []rune(content)
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}

	for _, word := range bannedWords {
		w := []rune(word)
		for i := 0; i+len(w) <= len(runes); i++ {
			match := true
			for j, wr := range w {
				if lowered[i+j] != wr {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			for j := range w {
				runes[i+j] = '*'
				lowered[i+j] = '*'
			}
			i += len(w) - 1
		}
	}

	cleaned := string(runes)
	lower := string(lowered)
	for _, kw := range astronomyKeywords {
		if strings.Contains(lower, kw) {
			return cleaned + " 🌟", "astronomy"
		}
	}
	return cleaned, ""
}

// handleChatWS runs one chat client: welcome, join notice, then a relay loop
// that filters and broadcasts every message to the chat group.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if clientID == "" {
		clientID = id.New(id.PrefixClient)
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("chat: upgrade failed", "error", err)
		return
	}
	conn := newConn(ws, r)
	defer ws.Close()

	s.hub.Subscribe(protocol.GroupChat, conn)
	s.hub.RegisterChat(conn, clientID)
	defer func() {
		s.hub.Unsubscribe(protocol.GroupChat, conn)
		s.hub.Broadcast(protocol.GroupChat, protocol.NewEnvelope(protocol.GroupChat, protocol.TypeUserLeft, protocol.SystemNotice{
			Message:       fmt.Sprintf("%s has left the chat", clientID),
			Sender:        "system",
			Timestamp:     time.Now().Unix(),
			ClientsOnline: s.hub.Count(protocol.GroupChat),
		}))
	}()

	online := s.hub.Count(protocol.GroupChat)
	if err := conn.Send(protocol.NewEnvelope(protocol.GroupChat, protocol.TypeSystemNotice, protocol.SystemNotice{
		Message:       fmt.Sprintf("🚀 Welcome to the Exoplanet Explorer chat, %s!", clientID),
		Sender:        "system",
		Timestamp:     time.Now().Unix(),
		ClientsOnline: online,
	})); err != nil {
		return
	}

	s.hub.BroadcastExcept(protocol.GroupChat, protocol.NewEnvelope(protocol.GroupChat, protocol.TypeUserJoined, protocol.SystemNotice{
		Message:       fmt.Sprintf("🌟 %s has joined the chat", clientID),
		Sender:        "system",
		Timestamp:     time.Now().Unix(),
		ClientsOnline: online,
	}), conn)

	ws.SetReadLimit(maxMessageSize)
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("chat: read failed", "clientId", clientID, "error", err)
			}
			return
		}

		env, err := decode(kind, data)
		if err != nil {
			conn.Send(protocol.NewEnvelope(protocol.GroupChat, protocol.TypeError, protocol.Error{
				Code:    "bad_envelope",
				Message: err.Error(),
			}))
			continue
		}

		msg, err := protocol.DecodeBody[protocol.ChatMessage](env)
		if err != nil || strings.TrimSpace(msg.Content) == "" {
			conn.Send(protocol.NewEnvelope(protocol.GroupChat, protocol.TypeError, protocol.Error{
				Code:    "empty_message",
				Message: "message content must not be empty",
			}))
			continue
		}

		content, category := filterMessage(msg.Content)
		s.hub.BumpMessageCount(conn)

		s.hub.Broadcast(protocol.GroupChat, protocol.NewEnvelope(protocol.GroupChat, protocol.TypeChatMessage, protocol.ChatMessage{
			ID:            id.NewChatMessage(),
			Sender:        clientID,
			Content:       content,
			Category:      category,
			Timestamp:     time.Now().Unix(),
			ClientsOnline: s.hub.Count(protocol.GroupChat),
		}))
	}
}
