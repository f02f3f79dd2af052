package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"isp-agent-service/internal/models"
)

const tenantColumns = `t.id, t.name, t.sgp_url, t.sgp_token, t.sgp_app_name, t.genieacs_url, t.genieacs_user, t.genieacs_password, t.is_active`

func scanTenant(row interface{ Scan(...any) error }) (models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.SGPURL, &t.SGPToken, &t.SGPAppName, &t.GenieACSURL, &t.GenieACSUser, &t.GenieACSPassword, &t.IsActive)
	return t, err
}

// TenantByToken resolves an active API token, falling back to the legacy
// per-tenant SGP token.
func (s *PostgresStore) TenantByToken(ctx context.Context, token string) (models.Tenant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Tenant{}, sql.ErrNoRows
	}
	t, err := scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+`
		 FROM tenant_tokens k JOIN tenants t ON t.id = k.tenant_id
		 WHERE k.token = $1 AND k.is_active AND t.is_active`, token))
	if err == nil || !errors.Is(err, sql.ErrNoRows) {
		return t, err
	}
	return scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants t WHERE t.sgp_token = $1 AND t.is_active`, token))
}

func (s *PostgresStore) TenantByID(ctx context.Context, id int64) (models.Tenant, error) {
	return scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants t WHERE t.id = $1 AND t.is_active`, id))
}
