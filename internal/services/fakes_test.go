package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"isp-agent-service/internal/genieacs"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/sgp"
	"isp-agent-service/internal/store"
)

type fakeStore struct {
	tenants   map[string]models.Tenant
	customers map[int64]*models.Customer
	sessions  map[string]models.ChatSession
	messages  []models.Message
	samples   []models.TelemetrySample
	devices   map[string]models.PushDevice
	wifi      []store.WifiCache
	settings  models.SystemSettings
	nextID    int64

	settingsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:   map[string]models.Tenant{},
		customers: map[int64]*models.Customer{},
		sessions:  map[string]models.ChatSession{},
		devices:   map[string]models.PushDevice{},
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) addTenant(token string, t models.Tenant) {
	s.tenants[token] = t
}

func (s *fakeStore) addCustomer(c models.Customer) *models.Customer {
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.customers[c.ID] = &c
	return s.customers[c.ID]
}

func (s *fakeStore) TenantByToken(_ context.Context, token string) (models.Tenant, error) {
	t, ok := s.tenants[token]
	if !ok {
		return models.Tenant{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *fakeStore) CustomerByCPF(_ context.Context, tenantID int64, cpf string) (models.Customer, error) {
	for _, c := range s.customers {
		if c.TenantID == tenantID && c.CPF == cpf {
			return *c, nil
		}
	}
	return models.Customer{}, sql.ErrNoRows
}

func (s *fakeStore) CustomerByID(_ context.Context, tenantID, id int64) (models.Customer, error) {
	c, ok := s.customers[id]
	if !ok || c.TenantID != tenantID {
		return models.Customer{}, sql.ErrNoRows
	}
	return *c, nil
}

func (s *fakeStore) CreateCustomer(_ context.Context, tenantID int64, cpf, name string) (models.Customer, error) {
	c := s.addCustomer(models.Customer{TenantID: tenantID, CPF: cpf, Name: name, Active: true})
	return *c, nil
}

func (s *fakeStore) UpdateCustomerName(_ context.Context, id int64, name string) error {
	s.customers[id].Name = name
	return nil
}

func (s *fakeStore) UpdatePPPoELogin(_ context.Context, id int64, login string) error {
	s.customers[id].PPPoELogin = login
	return nil
}

func (s *fakeStore) UpdateDeviceID(_ context.Context, id int64, deviceID string) error {
	s.customers[id].ACSDeviceID = deviceID
	return nil
}

func (s *fakeStore) UpdateWifiCache(_ context.Context, id int64, w store.WifiCache) error {
	s.wifi = append(s.wifi, w)
	c := s.customers[id]
	if w.SSID2G != nil {
		c.WifiSSID2G = *w.SSID2G
	}
	if w.Password2G != nil {
		c.WifiPassword2G = *w.Password2G
	}
	if w.SSID5G != nil {
		c.WifiSSID5G = *w.SSID5G
	}
	if w.Password5G != nil {
		c.WifiPassword5G = *w.Password5G
	}
	return nil
}

func (s *fakeStore) UpdateModemCache(_ context.Context, id int64, m store.ModemCache) error {
	c := s.customers[id]
	c.ModemModel = m.Model
	c.ModemManufacturer = m.Manufacturer
	return nil
}

func (s *fakeStore) CreateSession(_ context.Context, tenantID, customerID int64) (models.ChatSession, error) {
	sess := models.ChatSession{ID: "sess-" + strconv.FormatInt(s.id(), 10), TenantID: tenantID, CustomerID: customerID, IsActive: true}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *fakeStore) GetSession(_ context.Context, customerID int64, id string) (models.ChatSession, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.CustomerID != customerID {
		return models.ChatSession{}, sql.ErrNoRows
	}
	return sess, nil
}

func (s *fakeStore) AppendMessage(_ context.Context, sessionID, role, content string, disclosed bool) error {
	if _, ok := s.sessions[sessionID]; !ok {
		return sql.ErrNoRows
	}
	s.messages = append(s.messages, models.Message{ID: s.id(), SessionID: sessionID, Role: role, Content: content, PaymentDisclosed: disclosed})
	return nil
}

func (s *fakeStore) ListMessages(_ context.Context, sessionID string, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) InsertTelemetry(_ context.Context, t models.TelemetrySample) error {
	t.CreatedAt = time.Now()
	s.samples = append(s.samples, t)
	return nil
}

func (s *fakeStore) LatestTelemetry(_ context.Context, customerID int64) (models.TelemetrySample, error) {
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].CustomerID == customerID {
			return s.samples[i], nil
		}
	}
	return models.TelemetrySample{}, sql.ErrNoRows
}

func (s *fakeStore) DeviceByToken(_ context.Context, token string) (models.PushDevice, error) {
	d, ok := s.devices[token]
	if !ok {
		return models.PushDevice{}, sql.ErrNoRows
	}
	return d, nil
}

func (s *fakeStore) UpsertDevice(_ context.Context, d models.PushDevice) error {
	if prev, ok := s.devices[d.PushToken]; ok {
		d.ID = prev.ID
		if d.CustomerID == nil && prev.TenantID == d.TenantID {
			d.CustomerID = prev.CustomerID
		}
	} else {
		d.ID = s.id()
	}
	s.devices[d.PushToken] = d
	return nil
}

func (s *fakeStore) GetSettings(context.Context) (models.SystemSettings, error) {
	s.settingsCalls++
	if s.settings == (models.SystemSettings{}) {
		return models.SystemSettings{}, sql.ErrNoRows
	}
	return s.settings, nil
}

type fakeBilling struct {
	profile    *sgp.ClientProfile
	titles     []map[string]any
	secondCopy []map[string]any
	access     map[string]any
	unlock     map[string]any
	ticket     map[string]any

	calls        []string
	unlockCalls  []string
	ticketReason string
}

func (b *fakeBilling) ConsultaCliente(context.Context, models.Tenant, string) *sgp.ClientProfile {
	b.calls = append(b.calls, "consultacliente")
	return b.profile
}

func (b *fakeBilling) Titulos(context.Context, models.Tenant, string) []map[string]any {
	b.calls = append(b.calls, "titulos")
	return b.titles
}

func (b *fakeBilling) SegundaVia(context.Context, models.Tenant, string) []map[string]any {
	b.calls = append(b.calls, "segundavia")
	return b.secondCopy
}

func (b *fakeBilling) VerificaAcesso(_ context.Context, _ models.Tenant, _, contract string) map[string]any {
	b.calls = append(b.calls, "verificaacesso:"+contract)
	return b.access
}

func (b *fakeBilling) LiberacaoPromessa(_ context.Context, _ models.Tenant, _, contract string) map[string]any {
	b.calls = append(b.calls, "liberacaopromessa:"+contract)
	b.unlockCalls = append(b.unlockCalls, contract)
	return b.unlock
}

func (b *fakeBilling) AbrirChamado(_ context.Context, _ models.Tenant, contract, reason string) map[string]any {
	b.calls = append(b.calls, "chamado:"+contract)
	b.ticketReason = reason
	return b.ticket
}

// scriptedModel answers each call with the next step; the last step repeats.
type scriptedModel struct {
	steps    []func(req ModelRequest) (OpenAIMessage, error)
	requests []ModelRequest
}

func (m *scriptedModel) ChatWithTools(_ context.Context, req ModelRequest) (OpenAIMessage, error) {
	m.requests = append(m.requests, req)
	i := len(m.requests) - 1
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	return m.steps[i](req)
}

func reply(text string) func(ModelRequest) (OpenAIMessage, error) {
	return func(ModelRequest) (OpenAIMessage, error) {
		return OpenAIMessage{Role: "assistant", Content: text}, nil
	}
}

func callTool(id, name, args string) func(ModelRequest) (OpenAIMessage, error) {
	return func(ModelRequest) (OpenAIMessage, error) {
		return OpenAIMessage{Role: "assistant", ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: args}}}, nil
	}
}

func fail(err error) func(ModelRequest) (OpenAIMessage, error) {
	return func(ModelRequest) (OpenAIMessage, error) { return OpenAIMessage{}, err }
}

type fakeACS struct {
	deviceID  string
	findErr   error
	readErr   error
	config    genieacs.WifiConfig
	info      genieacs.DeviceInfo
	lookups   []string
	updates   []genieacs.WifiUpdate
	changeErr error
	readCalls int
}

func (a *fakeACS) FindDeviceByPPPoE(_ context.Context, login string) (string, error) {
	a.lookups = append(a.lookups, login)
	return a.deviceID, a.findErr
}

func (a *fakeACS) GetWifiConfig(context.Context, string) (*genieacs.WifiConfig, error) {
	a.readCalls++
	if a.readErr != nil {
		return nil, a.readErr
	}
	cfg := a.config
	return &cfg, nil
}

func (a *fakeACS) ChangeWifiConfig(_ context.Context, _ string, u genieacs.WifiUpdate) error {
	if a.changeErr != nil {
		return a.changeErr
	}
	a.updates = append(a.updates, u)
	if u.SSID2G != "" {
		a.config.SSID2G = u.SSID2G
	}
	if u.Password2G != "" {
		a.config.Password2G = u.Password2G
	}
	if u.SSID5G != "" {
		a.config.SSID5G = u.SSID5G
	}
	if u.Password5G != "" {
		a.config.Password5G = u.Password5G
	}
	return nil
}

func (a *fakeACS) GetDeviceInfo(context.Context, string) (*genieacs.DeviceInfo, error) {
	info := a.info
	return &info, nil
}

func acsFactory(a *fakeACS) ACSFactory {
	return func(models.Tenant) (ACS, error) { return a, nil }
}

var errBoom = errors.New("boom")
