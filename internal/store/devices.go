package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/lib/pq"

	"isp-agent-service/internal/models"
)

func (s *PostgresStore) DeviceByToken(ctx context.Context, token string) (models.PushDevice, error) {
	var d models.PushDevice
	var customerID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, push_token, platform, model, os_version, active, created_at, last_active
		 FROM push_devices WHERE push_token = $1`, token,
	).Scan(&d.ID, &d.TenantID, &customerID, &d.PushToken, &d.Platform, &d.Model, &d.OSVersion, &d.Active, &d.CreatedAt, &d.LastActive)
	if customerID.Valid {
		id := customerID.Int64
		d.CustomerID = &id
	}
	return d, err
}

// UpsertDevice registers a push token. An existing token moves to the given
// tenant and, when customerID is set, to that customer. A token moving to
// another tenant never keeps its old customer.
func (s *PostgresStore) UpsertDevice(ctx context.Context, d models.PushDevice) error {
	var customerID sql.NullInt64
	if d.CustomerID != nil {
		customerID = sql.NullInt64{Int64: *d.CustomerID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_devices (tenant_id, customer_id, push_token, platform, model, os_version, active, last_active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
		 ON CONFLICT (push_token) DO UPDATE SET
		   tenant_id = EXCLUDED.tenant_id,
		   customer_id = CASE
		     WHEN push_devices.tenant_id <> EXCLUDED.tenant_id THEN EXCLUDED.customer_id
		     ELSE COALESCE(EXCLUDED.customer_id, push_devices.customer_id)
		   END,
		   platform = EXCLUDED.platform,
		   model = EXCLUDED.model,
		   os_version = EXCLUDED.os_version,
		   active = TRUE,
		   last_active = NOW()`,
		d.TenantID, customerID, d.PushToken, d.Platform, d.Model, d.OSVersion)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// TokenFilter narrows a tenant's push tokens.
type TokenFilter struct {
	// Target matches a single customer by cpf, external id or contract.
	Target  string
	Segment string
	Tags    []string
	Search  string
}

// buildTokenQuery always constrains by tenant before any other predicate.
func buildTokenQuery(tenantID int64, f TokenFilter) (string, []any) {
	var b strings.Builder
	args := []any{tenantID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(`SELECT DISTINCT d.push_token
FROM push_devices d
LEFT JOIN customers c ON c.id = d.customer_id AND c.tenant_id = d.tenant_id
WHERE d.tenant_id = $1 AND d.active AND d.push_token <> ''`)

	if t := strings.TrimSpace(f.Target); t != "" {
		p := arg(t)
		b.WriteString(" AND (c.cpf = " + p + " OR c.external_id = " + p + " OR c.contract_id = " + p + ")")
	}

	switch f.Segment {
	case "active":
		b.WriteString(" AND c.active = TRUE")
	case "inactive":
		b.WriteString(" AND c.active = FALSE")
	}

	var tagPreds []string
	for _, tag := range f.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tagPreds = append(tagPreds, "c.tags ILIKE "+arg("%"+tag+"%"))
	}
	if len(tagPreds) > 0 {
		b.WriteString(" AND (" + strings.Join(tagPreds, " OR ") + ")")
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		text := arg("%" + q + "%")
		idPattern := text
		if digits := onlyDigits(q); digits != "" {
			idPattern = arg("%" + digits + "%")
		}
		b.WriteString(" AND (c.name ILIKE " + text + " OR c.email ILIKE " + text +
			" OR c.cpf LIKE " + idPattern + " OR c.contract_id LIKE " + idPattern + " OR c.external_id LIKE " + idPattern + ")")
	}

	b.WriteString(" ORDER BY d.push_token")
	return b.String(), args
}

func (s *PostgresStore) ListPushTokens(ctx context.Context, tenantID int64, f TokenFilter) ([]string, error) {
	q, args := buildTokenQuery(tenantID, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeactivateTokens disables tokens within one tenant only.
func (s *PostgresStore) DeactivateTokens(ctx context.Context, tenantID int64, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE push_devices SET active = FALSE WHERE tenant_id = $1 AND push_token = ANY($2)`,
		tenantID, pq.Array(tokens))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate tokens: %w", err)
	}
	return res.RowsAffected()
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
