package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/services"
)

type StreamHandlers struct {
	Chat   *services.ChatService
	Logger logging.Logger
}

func sseWriteEvent(w io.Writer, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	return nil
}

// HandleChatStream sends one "message" event per shaped message and a
// "final" event with the full response. Failures before the first event
// are answered with a plain JSON error and status code.
func (h *StreamHandlers) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_not_supported")
		return
	}

	req, problem := decodeChatRequest(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	resp, err := h.Chat.ChatStream(r.Context(), req, func(m models.ReplyMessage) {
		start()
		_ = sseWriteEvent(w, "message", m)
		flusher.Flush()
	})
	if err != nil {
		status, msg := chatErrorStatus(err)
		logging.OrDiscard(h.Logger).WithError(err).Warn("chat stream failed")
		if !started {
			writeError(w, status, msg)
			return
		}
		_ = sseWriteEvent(w, "error", map[string]any{"error": msg})
		flusher.Flush()
		return
	}
	start()
	_ = sseWriteEvent(w, "final", resp)
	flusher.Flush()
}
