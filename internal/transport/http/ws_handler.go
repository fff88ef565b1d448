package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-progression/internal/domain"
	"quiz-progression/internal/logging"
)

// EventHandler applies one participant event; app.Engine implements it.
type EventHandler interface {
	Handle(ctx context.Context, identityKey string, ev domain.Event) (domain.Reply, error)
}

type WSHandler struct {
	engine   EventHandler
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine EventHandler, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		engine: engine,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type eventPayload struct {
	Text     string `json:"text"`
	Yes      bool   `json:"yes"`
	PhotoRef string `json:"photoRef"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and feeds every inbound message
// to the engine as one event. Messages of one connection are handled in order.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profile := domain.Profile{
		IdentityKey: q.Get("userId"),
		Username:    q.Get("username"),
		FirstName:   q.Get("firstName"),
		LastName:    q.Get("lastName"),
	}
	if profile.IdentityKey == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx := logging.WithAttrs(r.Context(), slog.String("remote", r.RemoteAddr))
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WarnContext(ctx, "ws write error", slog.Any("error", err))
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.DebugContext(ctx, "ws read ended", slog.Any("error", err))
			}
			break
		}

		msg := h.handle(ctx, profile, inbound)
		if !deliver(send, writerDone, msg) {
			break
		}
	}
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, profile domain.Profile, inbound inboundMessage) outboundMessage[any] {
	ev, err := decodeEvent(inbound)
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	ev.Profile = profile

	reply, err := h.engine.Handle(ctx, profile.IdentityKey, ev)
	if err != nil && errors.Is(err, domain.ErrInvalidEvent) {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	// other failures are logged by the engine and come back as the retry reply
	return outboundMessage[any]{Type: "reply", Payload: reply}
}

// deliver queues msg for the writer goroutine. It reports false once the
// writer has stopped, so the read loop does not block on a full buffer.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case <-writerDone:
		return false
	default:
	}
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func decodeEvent(in inboundMessage) (domain.Event, error) {
	var p eventPayload
	if len(in.Payload) > 0 && string(in.Payload) != "null" {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return domain.Event{}, errors.New("invalid " + in.Type + " payload")
		}
	}

	switch domain.EventKind(in.Type) {
	case domain.EventStart:
		return domain.StartEvent(domain.Profile{}), nil
	case domain.EventAdvance:
		return domain.AdvanceEvent(), nil
	case domain.EventAnswer:
		return domain.AnswerEvent(p.Text), nil
	case domain.EventSkip:
		return domain.SkipEvent(), nil
	case domain.EventHint:
		return domain.HintEvent(), nil
	case domain.EventSelectSkipped:
		return domain.SelectSkippedEvent(p.Text), nil
	case domain.EventCollectField:
		return domain.CollectFieldEvent(p.Text), nil
	case domain.EventConfirm:
		return domain.ConfirmEvent(p.Yes), nil
	case domain.EventPhoto:
		return domain.PhotoEvent(p.PhotoRef), nil
	}
	return domain.Event{}, errors.New("unsupported message type")
}
