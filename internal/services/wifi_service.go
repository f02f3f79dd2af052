package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"isp-agent-service/internal/genieacs"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/store"
)

// ACS is the device-provisioning surface used for one tenant.
type ACS interface {
	FindDeviceByPPPoE(ctx context.Context, login string) (string, error)
	GetWifiConfig(ctx context.Context, deviceID string) (*genieacs.WifiConfig, error)
	ChangeWifiConfig(ctx context.Context, deviceID string, u genieacs.WifiUpdate) error
	GetDeviceInfo(ctx context.Context, deviceID string) (*genieacs.DeviceInfo, error)
}

// ACSFactory builds the ACS client for a tenant.
type ACSFactory func(tenant models.Tenant) (ACS, error)

// GenieACSFactory binds each tenant's GenieACS credentials.
func GenieACSFactory(nbiPort int, logger logging.Logger) ACSFactory {
	return func(t models.Tenant) (ACS, error) {
		c, err := genieacs.New(genieacs.Config{
			BaseURL:  t.GenieACSURL,
			Username: t.GenieACSUser,
			Password: t.GenieACSPassword,
			NBIPort:  nbiPort,
		}, nil, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type WifiStore interface {
	UpdateDeviceID(ctx context.Context, customerID int64, deviceID string) error
	UpdateWifiCache(ctx context.Context, customerID int64, w store.WifiCache) error
	UpdateModemCache(ctx context.Context, customerID int64, m store.ModemCache) error
}

// WifiResult is a Wi-Fi read. Cached is set when the ACS could not be
// reached and the last known credentials were returned instead.
type WifiResult struct {
	Config    genieacs.WifiConfig `json:"config"`
	Cached    bool                `json:"cached"`
	LastError *genieacs.Error     `json:"last_error,omitempty"`
}

type WifiService struct {
	ACS    ACSFactory
	Store  WifiStore
	Logger logging.Logger
	Now    func() time.Time
}

func (s *WifiService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// resolveDevice returns the cached router id, else looks it up by PPPoE
// login and caches it on the customer.
func (s *WifiService) resolveDevice(ctx context.Context, acs ACS, customer *models.Customer) (string, error) {
	if customer.ACSDeviceID != "" {
		return customer.ACSDeviceID, nil
	}
	if customer.PPPoELogin == "" {
		return "", ErrNoPPPoELogin
	}
	id, err := acs.FindDeviceByPPPoE(ctx, customer.PPPoELogin)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrDeviceNotFound
	}
	if err := s.Store.UpdateDeviceID(ctx, customer.ID, id); err != nil {
		logging.OrDiscard(s.Logger).WithError(err).WithField("customer_id", customer.ID).Warn("failed to cache acs device id")
	}
	customer.ACSDeviceID = id
	return id, nil
}

// Read returns the router's Wi-Fi settings. When the router cannot be
// read but credentials were cached earlier, those are returned marked as
// cached together with the ACS error.
func (s *WifiService) Read(ctx context.Context, tenant models.Tenant, customer *models.Customer) (WifiResult, error) {
	cfg, err := s.read(ctx, tenant, customer)
	if err == nil {
		s.mirror(ctx, customer, cfg)
		return WifiResult{Config: *cfg}, nil
	}
	if !customer.HasCachedWifi() {
		return WifiResult{}, err
	}
	res := WifiResult{
		Cached: true,
		Config: genieacs.WifiConfig{
			SSID2G:       customer.WifiSSID2G,
			Password2G:   customer.WifiPassword2G,
			SSID5G:       customer.WifiSSID5G,
			Password5G:   customer.WifiPassword5G,
			Model:        customer.ModemModel,
			Manufacturer: customer.ModemManufacturer,
		},
	}
	if acsErr, ok := genieacs.AsError(err); ok {
		res.LastError = acsErr
	}
	logging.OrDiscard(s.Logger).WithError(err).WithField("customer_id", customer.ID).Info("serving cached wifi config")
	return res, nil
}

func (s *WifiService) read(ctx context.Context, tenant models.Tenant, customer *models.Customer) (*genieacs.WifiConfig, error) {
	acs, err := s.ACS(tenant)
	if err != nil {
		return nil, err
	}
	id, err := s.resolveDevice(ctx, acs, customer)
	if err != nil {
		return nil, err
	}
	return acs.GetWifiConfig(ctx, id)
}

// mirror refreshes the cached credentials after a successful read.
func (s *WifiService) mirror(ctx context.Context, customer *models.Customer, cfg *genieacs.WifiConfig) {
	w := store.WifiCache{}
	if cfg.SSID2G != "" {
		w.SSID2G = &cfg.SSID2G
		customer.WifiSSID2G = cfg.SSID2G
	}
	if cfg.Password2G != "" {
		w.Password2G = &cfg.Password2G
		customer.WifiPassword2G = cfg.Password2G
	}
	if cfg.SSID5G != "" {
		w.SSID5G = &cfg.SSID5G
		customer.WifiSSID5G = cfg.SSID5G
	}
	if cfg.Password5G != "" {
		w.Password5G = &cfg.Password5G
		customer.WifiPassword5G = cfg.Password5G
	}
	if err := s.Store.UpdateWifiCache(ctx, customer.ID, w); err != nil {
		logging.OrDiscard(s.Logger).WithError(err).Warn("failed to mirror wifi config")
	}
}

// Update pushes only the supplied fields to the router and, on success,
// updates the same fields in the customer's cache.
func (s *WifiService) Update(ctx context.Context, tenant models.Tenant, customer *models.Customer, u genieacs.WifiUpdate) error {
	if u.Empty() {
		return genieacs.ErrNothingToChange
	}
	acs, err := s.ACS(tenant)
	if err != nil {
		return err
	}
	id, err := s.resolveDevice(ctx, acs, customer)
	if err != nil {
		return err
	}
	if err := acs.ChangeWifiConfig(ctx, id, u); err != nil {
		return err
	}

	w := store.WifiCache{}
	if u.SSID2G != "" {
		w.SSID2G = &u.SSID2G
		customer.WifiSSID2G = u.SSID2G
	}
	if u.Password2G != "" {
		w.Password2G = &u.Password2G
		customer.WifiPassword2G = u.Password2G
	}
	if u.SSID5G != "" {
		w.SSID5G = &u.SSID5G
		customer.WifiSSID5G = u.SSID5G
	}
	if u.Password5G != "" {
		w.Password5G = &u.Password5G
		customer.WifiPassword5G = u.Password5G
	}
	if err := s.Store.UpdateWifiCache(ctx, customer.ID, w); err != nil {
		logging.OrDiscard(s.Logger).WithError(err).Warn("failed to cache new wifi config")
	}
	return nil
}

// DeviceInfo reads router status and mirrors it onto the customer.
func (s *WifiService) DeviceInfo(ctx context.Context, tenant models.Tenant, customer *models.Customer) (*genieacs.DeviceInfo, error) {
	acs, err := s.ACS(tenant)
	if err != nil {
		return nil, err
	}
	id, err := s.resolveDevice(ctx, acs, customer)
	if err != nil {
		return nil, err
	}
	info, err := acs.GetDeviceInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	m := store.ModemCache{
		Model:         info.ProductClass,
		Manufacturer:  info.Manufacturer,
		ExternalIP:    info.ExternalIP,
		UptimeSeconds: info.UptimeSeconds,
		SyncedAt:      now,
	}
	if err := s.Store.UpdateModemCache(ctx, customer.ID, m); err != nil {
		logging.OrDiscard(s.Logger).WithError(err).Warn("failed to cache modem info")
	} else {
		customer.ModemModel = m.Model
		customer.ModemManufacturer = m.Manufacturer
		customer.ModemExternalIP = m.ExternalIP
		customer.ModemUptimeSeconds = m.UptimeSeconds
		customer.ModemLastSyncAt = &now
	}
	return info, nil
}

// describeWifiError renders a short customer-facing reason.
func describeWifiError(err error) string {
	switch {
	case errors.Is(err, ErrNoPPPoELogin), errors.Is(err, ErrDeviceNotFound):
		return "Não foi possível identificar seu modem no sistema de gerenciamento."
	case errors.Is(err, genieacs.ErrNotConfigured):
		return "O gerenciamento remoto de modems não está configurado para este provedor."
	case errors.Is(err, genieacs.ErrNothingToChange):
		return "Nenhuma alteração informada."
	}
	if acsErr, ok := genieacs.AsError(err); ok {
		if acsErr.Kind == genieacs.KindCWMPPort {
			return "O servidor de gerenciamento está configurado na porta errada (CWMP). Avise o suporte do provedor."
		}
		return fmt.Sprintf("Erro: %s", acsErr.Message)
	}
	return "Erro: Desconhecido"
}
