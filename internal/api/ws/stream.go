package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/chat"
)

// ServeChatStream runs one streamed turn over Server-Sent Events. Each SSE
// data line is one chat protocol frame; the stream ends after the terminal
// frame, or silently when the client disconnects mid-turn.
func (h *Hub) ServeChatStream(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" {
		http.Error(w, "missing message", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := h.chat.SendMessage(r.Context(), sessionID, message)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
		} else {
			http.Error(w, "failed to start turn", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, marshalErr := json.Marshal(ev)
		if marshalErr != nil {
			log.Error().Err(marshalErr).Msg("sse marshal event")
			continue
		}
		if _, writeErr := fmt.Fprintf(w, "data: %s\n\n", payload); writeErr != nil {
			// Client gone; SendMessage notices via ctx and stops upstream.
			return
		}
		flusher.Flush()
	}
}
