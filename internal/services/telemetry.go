package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"isp-agent-service/internal/models"
)

type TelemetryStore interface {
	TenantStore
	CustomerByCPF(ctx context.Context, tenantID int64, cpf string) (models.Customer, error)
	InsertTelemetry(ctx context.Context, t models.TelemetrySample) error
}

type TelemetryService struct {
	Store TelemetryStore
}

// Record stores one sample for a known customer of the token's tenant.
func (s *TelemetryService) Record(ctx context.Context, req models.TelemetryRequest) error {
	tenant, err := ResolveTenant(ctx, s.Store, req.ProviderToken)
	if err != nil {
		return err
	}
	cust, err := s.Store.CustomerByCPF(ctx, tenant.ID, NormalizeCPF(req.CPF))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCustomerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}
	sample := models.TelemetrySample{
		TenantID:    tenant.ID,
		CustomerID:  cust.ID,
		SSID:        req.SSID,
		WifiDBM:     req.WifiDBM,
		Band:        req.Band,
		LinkSpeed:   req.LinkSpeed,
		Latency:     req.Latency,
		Jitter:      req.Jitter,
		PacketLoss:  req.PacketLoss,
		NetworkType: req.NetworkType,
		IP:          req.IP,
		BSSID:       req.BSSID,
	}
	if err := s.Store.InsertTelemetry(ctx, sample); err != nil {
		return fmt.Errorf("failed to store telemetry: %w", err)
	}
	return nil
}
