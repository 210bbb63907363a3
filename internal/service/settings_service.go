package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type settingsStore interface {
	GetKeys(ctx context.Context, orgID string, keys []string) ([]models.OrgSetting, error)
	Upsert(ctx context.Context, setting *models.OrgSetting) error
}

// allowedSettingKeys whitelists the settings the API will read or write.
// Unknown keys are rejected rather than stored.
var allowedSettingKeys = map[string]struct{}{
	models.SettingIntakeDisplayLabels:   {},
	models.SettingIntakeImportantFields: {},
}

// SettingsService manages per-organization display settings. Reads go
// through the cache; writes invalidate the org's cached entries.
type SettingsService struct {
	repo      settingsStore
	cache     *CacheService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewSettingsService constructs a SettingsService instance.
func NewSettingsService(repo settingsStore, cache *CacheService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SettingsService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Get returns the whitelisted settings for the organization as a key/value
// map. Keys never written yet are simply absent.
func (s *SettingsService) Get(ctx context.Context, orgID string, actor Actor) (map[string]json.RawMessage, error) {
	if !models.Authorize(actor.Role, models.PermSettingsRead) {
		return nil, appErrors.ErrForbidden
	}

	cacheKey := settingsCacheKey(orgID)
	var cached map[string]json.RawMessage
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	keys := make([]string, 0, len(allowedSettingKeys))
	for key := range allowedSettingKeys {
		keys = append(keys, key)
	}
	settings, err := s.repo.GetKeys(ctx, orgID, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}

	out := make(map[string]json.RawMessage, len(settings))
	for _, setting := range settings {
		out[setting.Key] = setting.Value
	}

	if err := s.cache.Set(ctx, cacheKey, out, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache settings", zap.Error(err))
	}
	return out, nil
}

// Update writes one whitelisted setting and invalidates the org's cache.
func (s *SettingsService) Update(ctx context.Context, orgID string, actor Actor, req dto.UpdateSettingRequest) (*models.OrgSetting, error) {
	if !models.Authorize(actor.Role, models.PermSettingsWrite) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setting payload")
	}
	if _, ok := allowedSettingKeys[req.Key]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown setting key %q", req.Key))
	}
	if !json.Valid(req.Value) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "setting value must be valid JSON")
	}

	setting := &models.OrgSetting{
		OrgID:     orgID,
		Key:       req.Key,
		Value:     req.Value,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save setting")
	}

	if err := s.cache.Invalidate(ctx, settingsCacheKey(orgID)); err != nil {
		s.logger.Warn("failed to invalidate settings cache", zap.Error(err))
	}

	if s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"key": req.Key})
		log := &models.AuditLog{
			OrgID:      &orgID,
			UserID:     &actor.UserID,
			Action:     models.AuditActionSettingsWrite,
			Resource:   "settings",
			ResourceID: &setting.Key,
			NewValues:  payload,
			IPAddress:  actor.IPAddress,
			UserAgent:  actor.UserAgent,
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}
	return setting, nil
}

func settingsCacheKey(orgID string) string {
	return fmt.Sprintf("settings:%s", orgID)
}
