package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
)

type DeviceStore interface {
	TenantStore
	CustomerByID(ctx context.Context, tenantID, id int64) (models.Customer, error)
	CustomerByCPF(ctx context.Context, tenantID int64, cpf string) (models.Customer, error)
	DeviceByToken(ctx context.Context, token string) (models.PushDevice, error)
	UpsertDevice(ctx context.Context, d models.PushDevice) error
}

// DeviceService registers app installs for push delivery.
type DeviceService struct {
	Store  DeviceStore
	Logger logging.Logger
}

// Register upserts the device by push token. A new token needs a customer
// of the tenant; a known token may be refreshed without one, and moves to
// the new customer when one is given.
func (s *DeviceService) Register(ctx context.Context, req models.DeviceRegisterRequest) (models.PushDevice, error) {
	token := strings.TrimSpace(req.Token())
	if token == "" {
		return models.PushDevice{}, ErrTokenRequired
	}
	tenant, err := ResolveTenant(ctx, s.Store, req.ProviderToken)
	if err != nil {
		return models.PushDevice{}, err
	}

	var customerID *int64
	cust, err := s.lookupCustomer(ctx, tenant.ID, req)
	switch {
	case err == nil:
		customerID = &cust.ID
	case !errors.Is(err, ErrCustomerNotFound):
		return models.PushDevice{}, err
	}

	existing, err := s.Store.DeviceByToken(ctx, token)
	known := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.PushDevice{}, fmt.Errorf("failed to load device: %w", err)
	}
	if customerID == nil {
		if !known {
			return models.PushDevice{}, ErrCustomerRequired
		}
		if existing.TenantID == tenant.ID {
			customerID = existing.CustomerID
		}
	}

	d := models.PushDevice{
		TenantID:   tenant.ID,
		CustomerID: customerID,
		PushToken:  token,
		Platform:   strings.ToLower(strings.TrimSpace(req.Platform)),
		Model:      req.Device.Model,
		OSVersion:  req.Device.Version,
		Active:     true,
	}
	if d.Platform == "" {
		d.Platform = "android"
	}
	if err := s.Store.UpsertDevice(ctx, d); err != nil {
		return models.PushDevice{}, err
	}
	logging.OrDiscard(s.Logger).WithFields(logging.Fields{
		"tenant_id": tenant.ID,
		"token":     logging.TokenPreview(token),
		"known":     known,
	}).Info("device registered")
	return d, nil
}

func (s *DeviceService) lookupCustomer(ctx context.Context, tenantID int64, req models.DeviceRegisterRequest) (models.Customer, error) {
	var (
		cust models.Customer
		err  error
	)
	switch {
	case req.CustomerID > 0:
		cust, err = s.Store.CustomerByID(ctx, tenantID, req.CustomerID)
	case NormalizeCPF(req.CPF) != "":
		cust, err = s.Store.CustomerByCPF(ctx, tenantID, NormalizeCPF(req.CPF))
	default:
		return models.Customer{}, ErrCustomerNotFound
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to load customer: %w", err)
	}
	return cust, nil
}
