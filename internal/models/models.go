package models

import "time"

// Tenant is one ISP using the platform, with its own billing and ACS credentials.
type Tenant struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	SGPURL           string `json:"-"`
	SGPToken         string `json:"-"`
	SGPAppName       string `json:"-"`
	GenieACSURL      string `json:"-"`
	GenieACSUser     string `json:"-"`
	GenieACSPassword string `json:"-"`
	IsActive         bool   `json:"is_active"`
}

// Customer is unique per (tenant, cpf). The PPPoE, device, Wi-Fi and modem
// fields are soft caches of upstream state; last writer wins.
type Customer struct {
	ID         int64  `json:"id"`
	TenantID   int64  `json:"tenant_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	CPF        string `json:"cpf"`
	ExternalID string `json:"external_id"`
	ContractID string `json:"contract_id"`
	Tags       string `json:"tags"`
	Active     bool   `json:"active"`

	PPPoELogin  string `json:"pppoe_login"`
	ACSDeviceID string `json:"acs_device_id"`

	WifiSSID2G     string `json:"wifi_ssid_2g"`
	WifiPassword2G string `json:"-"`
	WifiSSID5G     string `json:"wifi_ssid_5g"`
	WifiPassword5G string `json:"-"`

	ModemModel         string     `json:"modem_model"`
	ModemManufacturer  string     `json:"modem_manufacturer"`
	ModemExternalIP    string     `json:"modem_external_ip"`
	ModemUptimeSeconds int64      `json:"modem_uptime_seconds"`
	ModemLastSyncAt    *time.Time `json:"modem_last_sync_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasCachedWifi reports whether any Wi-Fi credential was ever mirrored.
func (c Customer) HasCachedWifi() bool {
	return c.WifiSSID2G != "" || c.WifiPassword2G != "" || c.WifiSSID5G != "" || c.WifiPassword5G != ""
}

type TelemetrySample struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	CustomerID  int64     `json:"customer_id"`
	SSID        string    `json:"ssid"`
	WifiDBM     *int      `json:"wifi_dbm"`
	Band        string    `json:"band"`
	LinkSpeed   *int      `json:"link_speed"`
	Latency     *float64  `json:"latency"`
	Jitter      *float64  `json:"jitter"`
	PacketLoss  *float64  `json:"packet_loss"`
	NetworkType string    `json:"network_type"`
	IP          string    `json:"ip"`
	BSSID       string    `json:"bssid"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatSession struct {
	ID         string    `json:"session_id"`
	TenantID   int64     `json:"tenant_id"`
	CustomerID int64     `json:"customer_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	PaymentDisclosed bool      `json:"payment_disclosed"`
	CreatedAt        time.Time `json:"created_at"`
}

type PushDevice struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	CustomerID *int64    `json:"customer_id"`
	PushToken  string    `json:"push_token"`
	Platform   string    `json:"platform"`
	Model      string    `json:"model"`
	OSVersion  string    `json:"os_version"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// NotificationAudit is written once per fan-out and never updated.
type NotificationAudit struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Status       string    `json:"status"`
	Recipients   int       `json:"recipients"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	ScheduledPending = "pending"
	ScheduledSent    = "sent"
	ScheduledFailed  = "failed"
)

type ScheduledNotification struct {
	ID            int64      `json:"id"`
	TenantID      int64      `json:"tenant_id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Type          string     `json:"type"`
	ImageURL      string     `json:"image_url"`
	SegmentType   string     `json:"segment_type"`
	SegmentTags   string     `json:"segment_tags"`
	SegmentSearch string     `json:"segment_search"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Status        string     `json:"status"`
	SentCount     int        `json:"sent_count"`
	FailedCount   int        `json:"failed_count"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// SystemSettings holds deployment-wide model configuration.
type SystemSettings struct {
	ModelAPIKey    string
	ModelName      string
	PromptTemplate string
}
