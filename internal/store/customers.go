package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"isp-agent-service/internal/models"
)

const customerColumns = `id, tenant_id, name, email, cpf, external_id, contract_id, tags, active,
	pppoe_login, acs_device_id, wifi_ssid_2g, wifi_password_2g, wifi_ssid_5g, wifi_password_5g,
	modem_model, modem_manufacturer, modem_external_ip, modem_uptime_seconds, modem_last_sync_at, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (models.Customer, error) {
	var c models.Customer
	var synced sql.NullTime
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.CPF, &c.ExternalID, &c.ContractID, &c.Tags, &c.Active,
		&c.PPPoELogin, &c.ACSDeviceID, &c.WifiSSID2G, &c.WifiPassword2G, &c.WifiSSID5G, &c.WifiPassword5G,
		&c.ModemModel, &c.ModemManufacturer, &c.ModemExternalIP, &c.ModemUptimeSeconds, &synced, &c.CreatedAt)
	if synced.Valid {
		t := synced.Time
		c.ModemLastSyncAt = &t
	}
	return c, err
}

func (s *PostgresStore) CustomerByCPF(ctx context.Context, tenantID int64, cpf string) (models.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND cpf = $2`, tenantID, cpf))
}

func (s *PostgresStore) CustomerByID(ctx context.Context, tenantID, id int64) (models.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

// CustomerByContract matches the cached contract id or the external id.
func (s *PostgresStore) CustomerByContract(ctx context.Context, tenantID int64, contract string) (models.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE tenant_id = $1 AND (contract_id = $2 OR external_id = $2)
		 ORDER BY id LIMIT 1`, tenantID, contract))
}

// CreateCustomer inserts (tenant, cpf) or returns the existing row.
func (s *PostgresStore) CreateCustomer(ctx context.Context, tenantID int64, cpf, name string) (models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`INSERT INTO customers (tenant_id, cpf, name) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, cpf) DO UPDATE SET cpf = EXCLUDED.cpf
		 RETURNING `+customerColumns, tenantID, cpf, name))
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCustomerName(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE customers SET name = $2 WHERE id = $1`, id, name)
	return err
}

func (s *PostgresStore) UpdatePPPoELogin(ctx context.Context, id int64, login string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE customers SET pppoe_login = $2 WHERE id = $1`, id, login)
	return err
}

func (s *PostgresStore) UpdateContractID(ctx context.Context, id int64, contract string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE customers SET contract_id = $2 WHERE id = $1`, id, contract)
	return err
}

func (s *PostgresStore) UpdateDeviceID(ctx context.Context, id int64, deviceID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE customers SET acs_device_id = $2 WHERE id = $1`, id, deviceID)
	return err
}

// WifiCache is a partial update of the cached Wi-Fi credentials; nil
// fields keep their stored value.
type WifiCache struct {
	SSID2G     *string
	Password2G *string
	SSID5G     *string
	Password5G *string
}

func (s *PostgresStore) UpdateWifiCache(ctx context.Context, id int64, w WifiCache) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE customers SET
		   wifi_ssid_2g = COALESCE($2, wifi_ssid_2g),
		   wifi_password_2g = COALESCE($3, wifi_password_2g),
		   wifi_ssid_5g = COALESCE($4, wifi_ssid_5g),
		   wifi_password_5g = COALESCE($5, wifi_password_5g)
		 WHERE id = $1`,
		id, nullable(w.SSID2G), nullable(w.Password2G), nullable(w.SSID5G), nullable(w.Password5G))
	return err
}

// ModemCache mirrors the last successful device read.
type ModemCache struct {
	Model         string
	Manufacturer  string
	ExternalIP    string
	UptimeSeconds int64
	SyncedAt      time.Time
}

func (s *PostgresStore) UpdateModemCache(ctx context.Context, id int64, m ModemCache) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE customers SET modem_model = $2, modem_manufacturer = $3, modem_external_ip = $4,
		   modem_uptime_seconds = $5, modem_last_sync_at = $6
		 WHERE id = $1`,
		id, m.Model, m.Manufacturer, m.ExternalIP, m.UptimeSeconds, m.SyncedAt)
	return err
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
