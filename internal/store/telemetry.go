package store

import (
	"context"
	"database/sql"

	"isp-agent-service/internal/models"
)

func (s *PostgresStore) InsertTelemetry(ctx context.Context, t models.TelemetrySample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry_samples
		   (tenant_id, customer_id, ssid, wifi_dbm, band, link_speed, latency, jitter, packet_loss, network_type, ip, bssid)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.TenantID, t.CustomerID, t.SSID, t.WifiDBM, t.Band, t.LinkSpeed, t.Latency, t.Jitter, t.PacketLoss, t.NetworkType, t.IP, t.BSSID)
	return err
}

// LatestTelemetry returns sql.ErrNoRows when the customer never reported.
func (s *PostgresStore) LatestTelemetry(ctx context.Context, customerID int64) (models.TelemetrySample, error) {
	var t models.TelemetrySample
	var dbm, speed sql.NullInt64
	var latency, jitter, loss sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, ssid, wifi_dbm, band, link_speed, latency, jitter, packet_loss, network_type, ip, bssid, created_at
		 FROM telemetry_samples WHERE customer_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, customerID,
	).Scan(&t.ID, &t.TenantID, &t.CustomerID, &t.SSID, &dbm, &t.Band, &speed, &latency, &jitter, &loss, &t.NetworkType, &t.IP, &t.BSSID, &t.CreatedAt)
	if err != nil {
		return models.TelemetrySample{}, err
	}
	t.WifiDBM = intPtr(dbm)
	t.LinkSpeed = intPtr(speed)
	t.Latency = floatPtr(latency)
	t.Jitter = floatPtr(jitter)
	t.PacketLoss = floatPtr(loss)
	return t, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
