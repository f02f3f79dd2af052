package models

import "strings"

// InlineTelemetry is the optional network reading embedded in a chat turn.
type InlineTelemetry struct {
	SSID           string `json:"ssid"`
	SignalStrength *int   `json:"signal_strength"`
	WifiDBM        *int   `json:"wifi_dbm"`
	IP             string `json:"ip"`
	BSSID          string `json:"bssid"`
	Connectivity   string `json:"connectivity"`
}

// Signal prefers signal_strength over wifi_dbm.
func (t InlineTelemetry) Signal() *int {
	if t.SignalStrength != nil {
		return t.SignalStrength
	}
	return t.WifiDBM
}

type ChatRequest struct {
	ProviderToken string           `json:"provider_token" validate:"required"`
	CPF           string           `json:"cpf" validate:"cpf"`
	Name          string           `json:"name"`
	Message       string           `json:"message" validate:"required"`
	SessionID     string           `json:"session_id"`
	Telemetry     *InlineTelemetry `json:"telemetry,omitempty"`
}

func (r *ChatRequest) Normalize() {
	r.ProviderToken = strings.TrimSpace(r.ProviderToken)
	r.CPF = strings.TrimSpace(r.CPF)
	r.Name = strings.TrimSpace(r.Name)
	r.Message = strings.TrimSpace(r.Message)
	r.SessionID = strings.TrimSpace(r.SessionID)
}

type PaymentData struct {
	CodigoPix      string `json:"codigoPix"`
	LinhaDigitavel string `json:"linhaDigitavel"`
	QRCodeBase64   string `json:"qrcode_base64,omitempty"`
}

// ReplyMessage is one delivered bubble; only the payment card carries data.
type ReplyMessage struct {
	Text        string       `json:"text"`
	PaymentData *PaymentData `json:"payment_data,omitempty"`
}

const (
	ActionSendInvoice = "send_invoice"
	ActionNone        = "none"
)

type ChatResponse struct {
	SessionID         string         `json:"session_id"`
	Response          string         `json:"response"`
	Messages          []ReplyMessage `json:"messages"`
	TelemetryAnalyzed bool           `json:"telemetry_analyzed"`
	PaymentData       *PaymentData   `json:"payment_data"`
	Action            string         `json:"action"`
}

type TelemetryRequest struct {
	ProviderToken string   `json:"provider_token" validate:"required"`
	CPF           string   `json:"cpf" validate:"cpf"`
	SSID          string   `json:"ssid"`
	WifiDBM       *int     `json:"wifi_dbm"`
	Band          string   `json:"band"`
	LinkSpeed     *int     `json:"link_speed"`
	Latency       *float64 `json:"latency"`
	Jitter        *float64 `json:"jitter"`
	PacketLoss    *float64 `json:"packet_loss"`
	NetworkType   string   `json:"network_type"`
	IP            string   `json:"ip"`
	BSSID         string   `json:"bssid"`
}

func (r *TelemetryRequest) Normalize() {
	r.ProviderToken = strings.TrimSpace(r.ProviderToken)
	r.CPF = strings.TrimSpace(r.CPF)
}

type DeviceInfo struct {
	Model   string `json:"model"`
	Version string `json:"version"`
}

type DeviceRegisterRequest struct {
	ProviderToken string     `json:"provider_token" validate:"required"`
	FCMToken      string     `json:"fcm_token" validate:"required_without=PushToken"`
	PushToken     string     `json:"push_token"`
	Platform      string     `json:"platform"`
	CPF           string     `json:"cpf"`
	CustomerID    int64      `json:"user_id"`
	Device        DeviceInfo `json:"device"`
}

func (r *DeviceRegisterRequest) Normalize() {
	r.ProviderToken = strings.TrimSpace(r.ProviderToken)
	r.FCMToken = strings.TrimSpace(r.FCMToken)
	r.PushToken = strings.TrimSpace(r.PushToken)
	r.CPF = strings.TrimSpace(r.CPF)
}

// Token accepts either field name used by app builds.
func (r DeviceRegisterRequest) Token() string {
	if r.FCMToken != "" {
		return r.FCMToken
	}
	return r.PushToken
}

type AdminPushRequest struct {
	ProviderID    *int64 `json:"provider_id"`
	Title         string `json:"title" validate:"required"`
	Message       string `json:"message" validate:"required"`
	Link          string `json:"link"`
	Target        string `json:"target"`
	SegmentType   string `json:"segment_type"`
	SegmentTags   string `json:"segment_tags"`
	SegmentSearch string `json:"segment_search"`
}

func (r *AdminPushRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Message = strings.TrimSpace(r.Message)
	r.Target = strings.TrimSpace(r.Target)
}

type ScheduleRequest struct {
	AdminPushRequest
	Type        string `json:"type"`
	ImageURL    string `json:"image_url"`
	ScheduledAt string `json:"scheduled_at" validate:"datetime=2006-01-02T15:04:05Z07:00"`
}

func (r *ScheduleRequest) Normalize() {
	r.AdminPushRequest.Normalize()
	r.Type = strings.TrimSpace(r.Type)
	r.ScheduledAt = strings.TrimSpace(r.ScheduledAt)
}

type WifiUpdateRequest struct {
	ProviderToken string `json:"provider_token"`
	Contrato      string `json:"contrato"`
	SSID2G        string `json:"novo_ssid"`
	Password2G    string `json:"nova_senha"`
	SSID5G        string `json:"novo_ssid_5ghz"`
	Password5G    string `json:"nova_senha_5ghz"`
}
