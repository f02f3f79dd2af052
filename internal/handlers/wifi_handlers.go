package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"isp-agent-service/internal/genieacs"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/services"
)

type WifiCustomerStore interface {
	services.TenantStore
	CustomerByContract(ctx context.Context, tenantID int64, contract string) (models.Customer, error)
}

// WifiHandlers let the app read and change the customer's router Wi-Fi by
// contract.
type WifiHandlers struct {
	Store  WifiCustomerStore
	Wifi   *services.WifiService
	Logger logging.Logger
}

type wifiConfigResponse struct {
	SSID             string                     `json:"ssid"`
	Password         string                     `json:"password"`
	SSID5G           string                     `json:"ssid_5ghz"`
	Password5G       string                     `json:"password_5ghz"`
	Model            string                     `json:"model"`
	Manufacturer     string                     `json:"manufacturer"`
	WanUpTime        string                     `json:"wan_up_time"`
	IP               string                     `json:"ip"`
	Status           string                     `json:"status"`
	ConnectedCount   int                        `json:"connected_count"`
	ConnectedDevices []genieacs.ConnectedDevice `json:"connected_devices"`
	Erro             bool                       `json:"erro"`
	Mensagem         string                     `json:"mensagem,omitempty"`
}

func writeWifiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"erro": true, "mensagem": msg})
}

// FormatUptime renders seconds as "1d 2h 3m", or N/A when unknown.
func FormatUptime(seconds int64) string {
	if seconds <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%dd %dh %dm", seconds/86400, (seconds%86400)/3600, (seconds%3600)/60)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// customer resolves (provider_token, contrato) and writes the error
// response itself when it fails.
func (h *WifiHandlers) customer(w http.ResponseWriter, r *http.Request, token, contract string) (models.Tenant, *models.Customer, bool) {
	if strings.TrimSpace(contract) == "" {
		writeWifiError(w, http.StatusBadRequest, "Contrato não informado.")
		return models.Tenant{}, nil, false
	}
	if strings.TrimSpace(token) == "" {
		writeWifiError(w, http.StatusBadRequest, "provider_token é obrigatório.")
		return models.Tenant{}, nil, false
	}
	tenant, err := services.ResolveTenant(r.Context(), h.Store, token)
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			writeWifiError(w, http.StatusForbidden, "Token de provedor inválido ou inativo.")
		} else {
			writeWifiError(w, http.StatusInternalServerError, "Falha ao consultar provedor.")
		}
		return models.Tenant{}, nil, false
	}
	cust, err := h.Store.CustomerByContract(r.Context(), tenant.ID, strings.TrimSpace(contract))
	if err != nil || cust.PPPoELogin == "" {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			logging.OrDiscard(h.Logger).WithError(err).Error("wifi customer lookup failed")
		}
		writeWifiError(w, http.StatusNotFound, "Contrato não encontrado ou sem login PPPoE vinculado.")
		return models.Tenant{}, nil, false
	}
	return tenant, &cust, true
}

// wifiFailure maps ACS failures onto status and message. Transport
// failures are 502, the rest 500.
func wifiFailure(err error, customer *models.Customer, fallback string) (int, string) {
	switch {
	case errors.Is(err, services.ErrDeviceNotFound), errors.Is(err, services.ErrNoPPPoELogin):
		return http.StatusNotFound, fmt.Sprintf("Modem não encontrado para o login %s.", customer.PPPoELogin)
	case errors.Is(err, genieacs.ErrNotConfigured):
		return http.StatusInternalServerError, "GenieACS não configurado para este provedor."
	case errors.Is(err, genieacs.ErrNothingToChange):
		return http.StatusBadRequest, "Nenhum parâmetro de alteração enviado."
	}
	if acsErr, ok := genieacs.AsError(err); ok {
		status := http.StatusInternalServerError
		if acsErr.Kind == genieacs.KindConnection || acsErr.Kind == genieacs.KindCWMPPort {
			status = http.StatusBadGateway
		}
		return status, orDefault(acsErr.Message, fallback)
	}
	return http.StatusBadGateway, fallback
}

func (h *WifiHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant, cust, ok := h.customer(w, r, q.Get("provider_token"), q.Get("contrato"))
	if !ok {
		return
	}

	res, err := h.Wifi.Read(r.Context(), tenant, cust)
	if err != nil {
		status, msg := wifiFailure(err, cust, "Falha ao ler configurações do modem.")
		writeWifiError(w, status, msg)
		return
	}

	if res.Cached {
		msg := "Falha ao ler configurações do modem."
		if res.LastError != nil && res.LastError.Message != "" {
			msg = res.LastError.Message
		}
		writeJSON(w, http.StatusOK, wifiConfigResponse{
			SSID:             res.Config.SSID2G,
			Password:         res.Config.Password2G,
			SSID5G:           res.Config.SSID5G,
			Password5G:       res.Config.Password5G,
			Model:            orDefault(cust.ModemModel, "Desconhecido"),
			Manufacturer:     orDefault(cust.ModemManufacturer, "Desconhecido"),
			WanUpTime:        FormatUptime(cust.ModemUptimeSeconds),
			IP:               orDefault(cust.ModemExternalIP, "0.0.0.0"),
			Status:           "Sem conexão com modem",
			ConnectedDevices: []genieacs.ConnectedDevice{},
			Mensagem:         msg,
		})
		return
	}

	resp := wifiConfigResponse{
		SSID:             res.Config.SSID2G,
		Password:         orDefault(res.Config.Password2G, cust.WifiPassword2G),
		SSID5G:           res.Config.SSID5G,
		Password5G:       orDefault(res.Config.Password5G, cust.WifiPassword5G),
		Model:            orDefault(res.Config.Model, "Desconhecido"),
		Manufacturer:     orDefault(res.Config.Manufacturer, "Desconhecido"),
		WanUpTime:        "N/A",
		IP:               "0.0.0.0",
		Status:           "Online",
		ConnectedDevices: []genieacs.ConnectedDevice{},
	}
	info, err := h.Wifi.DeviceInfo(r.Context(), tenant, cust)
	if err != nil {
		if acsErr, ok := genieacs.AsError(err); ok {
			resp.Mensagem = acsErr.Message
		}
	} else {
		resp.Model = orDefault(info.ProductClass, resp.Model)
		resp.Manufacturer = orDefault(info.Manufacturer, resp.Manufacturer)
		resp.WanUpTime = FormatUptime(info.UptimeSeconds)
		resp.IP = orDefault(info.ExternalIP, resp.IP)
		resp.ConnectedCount = info.ConnectedCount
		if info.ConnectedDevices != nil {
			resp.ConnectedDevices = info.ConnectedDevices
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WifiHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.WifiUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWifiError(w, http.StatusBadRequest, "JSON inválido.")
		return
	}
	q := r.URL.Query()
	token := orDefault(req.ProviderToken, q.Get("provider_token"))
	contract := orDefault(req.Contrato, q.Get("contrato"))
	tenant, cust, ok := h.customer(w, r, token, contract)
	if !ok {
		return
	}

	u := genieacs.WifiUpdate{
		SSID2G:     strings.TrimSpace(req.SSID2G),
		Password2G: req.Password2G,
		SSID5G:     strings.TrimSpace(req.SSID5G),
		Password5G: req.Password5G,
	}
	if u.Empty() {
		writeWifiError(w, http.StatusBadRequest, "Nenhum parâmetro de alteração enviado.")
		return
	}
	if err := h.Wifi.Update(r.Context(), tenant, cust, u); err != nil {
		status, msg := wifiFailure(err, cust, "Falha ao aplicar configurações no modem via GenieACS.")
		writeWifiError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"erro": false, "mensagem": "Configuração Wi-Fi enviada com sucesso! Aguarde alguns instantes."})
}
