package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"isp-agent-service/internal/models"
	"isp-agent-service/internal/services"
)

type SessionStore interface {
	services.TenantStore
	CustomerByCPF(ctx context.Context, tenantID int64, cpf string) (models.Customer, error)
	GetSession(ctx context.Context, customerID int64, sessionID string) (models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

// ConversationHandlers expose a customer's own chat history.
type ConversationHandlers struct {
	Store SessionStore
}

func (h *ConversationHandlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id_required")
		return
	}
	q := r.URL.Query()
	cpf := services.NormalizeCPF(q.Get("cpf"))
	if strings.TrimSpace(q.Get("provider_token")) == "" || cpf == "" {
		writeError(w, http.StatusBadRequest, "provider_token e CPF são obrigatórios")
		return
	}

	tenant, err := services.ResolveTenant(r.Context(), h.Store, q.Get("provider_token"))
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			writeError(w, http.StatusForbidden, "Provedor inválido")
			return
		}
		writeError(w, http.StatusInternalServerError, "list_messages_failed")
		return
	}
	cust, err := h.Store.CustomerByCPF(r.Context(), tenant.ID, cpf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, "list_messages_failed")
		return
	}
	if _, err := h.Store.GetSession(r.Context(), cust.ID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "list_messages_failed")
		return
	}

	limit := 50
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := h.Store.ListMessages(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_messages_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": msgs})
}
