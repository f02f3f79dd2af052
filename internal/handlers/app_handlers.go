package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/services"
)

// AppHandlers serve the customer app's telemetry and device endpoints.
type AppHandlers struct {
	Telemetry *services.TelemetryService
	Devices   *services.DeviceService
	Logger    logging.Logger
}

func (h *AppHandlers) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	var req models.TelemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Normalize()
	if problem := telemetryMessages.check(req); problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	err := h.Telemetry.Record(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"status": "ok"})
	case errors.Is(err, services.ErrTenantNotFound):
		writeError(w, http.StatusForbidden, "Provedor inválido")
	case errors.Is(err, services.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "Usuário não registrado")
	default:
		logging.OrDiscard(h.Logger).WithError(err).Error("telemetry failed")
		writeError(w, http.StatusInternalServerError, "telemetry_failed")
	}
}

func (h *AppHandlers) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Normalize()
	if problem := deviceMessages.check(req); problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	d, err := h.Devices.Register(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "platform": d.Platform, "customer_id": d.CustomerID})
	case errors.Is(err, services.ErrTokenRequired):
		writeError(w, http.StatusBadRequest, "fcm_token é obrigatório.")
	case errors.Is(err, services.ErrTenantNotFound):
		writeError(w, http.StatusForbidden, "Token de provedor inválido ou inativo.")
	case errors.Is(err, services.ErrCustomerRequired):
		writeError(w, http.StatusBadRequest, "Usuário não identificado para este provedor. Envie CPF.")
	default:
		logging.OrDiscard(h.Logger).WithError(err).Error("device registration failed")
		writeError(w, http.StatusInternalServerError, "register_device_failed")
	}
}
