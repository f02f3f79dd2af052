package store

import (
	"context"

	"isp-agent-service/internal/models"
)

// GetSettings returns sql.ErrNoRows when the settings row was never written.
func (s *PostgresStore) GetSettings(ctx context.Context) (models.SystemSettings, error) {
	var out models.SystemSettings
	err := s.db.QueryRowContext(ctx,
		`SELECT model_api_key, model_name, prompt_template FROM system_settings WHERE id = 1`,
	).Scan(&out.ModelAPIKey, &out.ModelName, &out.PromptTemplate)
	return out, err
}
