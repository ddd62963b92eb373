package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/domain"
	"github.com/verityai/caseflow/internal/review"
)

// Hub serves the duplex review-room connections and the chat event stream.
type Hub struct {
	rooms *review.Manager
	chat  *chat.Orchestrator
}

func NewHub(rooms *review.Manager, orch *chat.Orchestrator) *Hub {
	return &Hub{rooms: rooms, chat: orch}
}

// ServeReview handles one reviewer's WebSocket connection to an entity's
// room. Closing the connection, gracefully or not, unregisters the reviewer.
func (h *Hub) ServeReview(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		http.Error(w, "invalid entity id", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "reviewer"
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	room, member, err := h.rooms.Join(ctx, entityID, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = conn.Close(websocket.StatusPolicyViolation, "unknown entity")
		} else {
			_ = conn.Close(websocket.StatusInternalError, "join failed")
		}
		return
	}
	defer room.Leave(member.ID)

	// Single writer preserves the room's broadcast order on the wire.
	go func() {
		defer cancel()
		for f := range member.Frames {
			payload, marshalErr := json.Marshal(f)
			if marshalErr != nil {
				log.Error().Err(marshalErr).Msg("websocket marshal frame")
				continue
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, payload); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "room closed")
	}()

	for {
		_, data, readErr := conn.Read(ctx)
		if readErr != nil {
			// Connection dropped or client closed; Leave runs via defer.
			return
		}
		room.HandleFrame(member.ID, data)
	}
}
