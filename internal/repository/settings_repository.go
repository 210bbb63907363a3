package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tutorium/intake-api/internal/models"
)

// SettingsRepository persists per-organization key/value settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetKeys returns the settings for the requested keys. Missing keys are
// simply absent from the result.
func (r *SettingsRepository) GetKeys(ctx context.Context, orgID string, keys []string) ([]models.OrgSetting, error) {
	const query = `SELECT org_id, key, value, updated_at FROM org_settings
        WHERE org_id = $1 AND key = ANY($2) ORDER BY key ASC`
	var settings []models.OrgSetting
	if err := r.db.SelectContext(ctx, &settings, query, orgID, pq.StringArray(keys)); err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

// Upsert writes a setting, replacing any previous value for the key.
func (r *SettingsRepository) Upsert(ctx context.Context, setting *models.OrgSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO org_settings (org_id, key, value, updated_at)
        VALUES (:org_id, :key, :value, :updated_at)
        ON CONFLICT (org_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
