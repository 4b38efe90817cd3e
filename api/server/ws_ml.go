package server

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/exoplanet-explorer/backend/api/services"
	"github.com/exoplanet-explorer/backend/shared/id"
	"github.com/exoplanet-explorer/backend/shared/protocol"
)

const (
	defaultStreamInterval = 2 * time.Second
	minStreamInterval     = 200 * time.Millisecond
)

// handleMLWS serves one classification client. Single-shot ClassifyRequest
// frames get an immediate result; StreamStart spins up a goroutine emitting
// periodic predictions until StreamStop or disconnect.
func (s *Server) handleMLWS(w http.ResponseWriter, r *http.Request) {
	modelType := chi.URLParam(r, "modelType")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ml: upgrade failed", "error", err)
		return
	}
	conn := newConn(ws, r)
	defer ws.Close()

	if !services.SupportedModel(modelType) {
		conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeError, protocol.Error{
			Code:    "unsupported_model",
			Message: "unsupported model type: " + modelType,
		}))
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unsupported model type"),
			time.Now().Add(writeTimeout))
		return
	}

	s.hub.Subscribe(protocol.GroupML, conn)
	defer s.hub.Unsubscribe(protocol.GroupML, conn)

	streams := newStreamSet()
	defer streams.stopAll()

	ws.SetReadLimit(maxMessageSize)
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ml: read failed", "modelType", modelType, "error", err)
			}
			return
		}

		env, err := decode(kind, data)
		if err != nil {
			conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeError, protocol.Error{
				Code:    "bad_envelope",
				Message: err.Error(),
			}))
			continue
		}

		switch env.Type {
		case protocol.TypeClassifyRequest:
			s.handleClassify(r.Context(), conn, modelType, env)
		case protocol.TypeStreamStart:
			s.handleStreamStart(conn, modelType, env, streams)
		case protocol.TypeStreamStop:
			stop, err := protocol.DecodeBody[protocol.StreamStop](env)
			if err != nil {
				continue
			}
			streams.stop(stop.StreamID)
		default:
			conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeError, protocol.Error{
				Code:    "unknown_type",
				Message: "unknown message type",
			}))
		}
	}
}

func (s *Server) handleClassify(ctx context.Context, conn *Conn, modelType string, env *protocol.Envelope) {
	req, err := protocol.DecodeBody[protocol.ClassifyRequest](env)
	if err != nil {
		conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeError, protocol.Error{
			Code:    "bad_request",
			Message: err.Error(),
		}))
		return
	}

	result, err := s.classifier.Classify(ctx, modelType, req.Features)
	if err != nil {
		conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeError, protocol.Error{
			Code:    "classify_failed",
			Message: err.Error(),
		}))
		return
	}

	conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeClassifyResult, protocol.ClassifyResult{
		RequestID:      req.RequestID,
		ModelType:      modelType,
		Classification: result.Prediction,
		Confidence:     result.Confidence,
		Probabilities:  result.Probabilities,
		Timestamp:      time.Now().Unix(),
	}))
}

func (s *Server) handleStreamStart(conn *Conn, modelType string, env *protocol.Envelope, streams *streamSet) {
	req, err := protocol.DecodeBody[protocol.StreamStart](env)
	if err != nil {
		conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeError, protocol.Error{
			Code:    "bad_request",
			Message: err.Error(),
		}))
		return
	}

	interval := defaultStreamInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
		if interval < minStreamInterval {
			interval = minStreamInterval
		}
	}

	streamID := id.NewStream()
	done := streams.add(streamID)

	conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeAck, protocol.StreamStop{StreamID: streamID}))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sequence := 0
		for {
			select {
			case <-done:
				conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeStreamComplete, protocol.StreamComplete{
					StreamID: streamID,
					Sent:     sequence,
				}))
				return
			case <-ticker.C:
				sequence++
				prediction := streamPrediction(streamID, sequence)
				label := domainLabel(prediction)

				if err := conn.Send(protocol.NewEnvelope(protocol.GroupML, protocol.TypeStreamUpdate, protocol.StreamUpdate{
					StreamID:   streamID,
					Sequence:   sequence,
					ModelType:  modelType,
					Prediction: prediction,
					Label:      label,
					Timestamp:  time.Now().Unix(),
				})); err != nil {
					streams.stop(streamID)
					return
				}
			}
		}
	}()
}

// streamPrediction is a smooth pseudo-signal over the sequence number, seeded
// by the stream id so concurrent streams differ.
func streamPrediction(streamID string, sequence int) float64 {
	var seed float64
	for i := 0; i < len(streamID); i++ {
		seed += float64(streamID[i])
	}
	value := 0.5 + 0.45*math.Sin(seed+float64(sequence)*0.7)
	return math.Round(value*1000) / 1000
}

func domainLabel(prediction float64) string {
	switch {
	case prediction >= 0.7:
		return "CONFIRMED"
	case prediction >= 0.4:
		return "CANDIDATE"
	default:
		return "FALSE_POSITIVE"
	}
}

// streamSet tracks the stop channels for one connection's active streams.
type streamSet struct {
	mu      sync.Mutex
	streams map[string]chan struct{}
}

func newStreamSet() *streamSet {
	return &streamSet{streams: make(map[string]chan struct{})}
}

func (ss *streamSet) add(streamID string) <-chan struct{} {
	done := make(chan struct{})
	ss.mu.Lock()
	ss.streams[streamID] = done
	ss.mu.Unlock()
	return done
}

func (ss *streamSet) stop(streamID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if done, ok := ss.streams[streamID]; ok {
		close(done)
		delete(ss.streams, streamID)
	}
}

func (ss *streamSet) stopAll() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for streamID, done := range ss.streams {
		close(done)
		delete(ss.streams, streamID)
	}
}
