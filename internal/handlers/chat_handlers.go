package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/services"
)

type ChatHandlers struct {
	Chat   *services.ChatService
	Logger logging.Logger
}

func decodeChatRequest(r *http.Request) (models.ChatRequest, string) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "invalid_json"
	}
	req.Normalize()
	return req, chatMessages.check(req)
}

// chatErrorStatus maps chat failures onto HTTP responses.
func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrTenantNotFound):
		return http.StatusForbidden, "Provedor inválido"
	case errors.Is(err, services.ErrCustomerNotFound):
		return http.StatusNotFound, "Usuário não encontrado"
	case errors.Is(err, services.ErrModelNotConfigured):
		return http.StatusInternalServerError, "Chave API da IA não configurada no Painel Superadmin"
	case errors.Is(err, services.ErrModelBusy):
		return http.StatusServiceUnavailable, "Serviço de IA muito ocupado. Aguarde alguns segundos e tente novamente."
	case errors.Is(err, services.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "Serviço de IA temporariamente indisponível. Tente novamente em instantes."
	default:
		return http.StatusInternalServerError, "Erro ao processar conversa com a IA"
	}
}

func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, problem := decodeChatRequest(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	resp, err := h.Chat.Chat(r.Context(), req)
	if err != nil {
		status, msg := chatErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logging.OrDiscard(h.Logger).WithError(err).Error("chat failed")
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
