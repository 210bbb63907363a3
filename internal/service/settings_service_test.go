package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type settingsRepoStub struct {
	settings []models.OrgSetting
	upserted *models.OrgSetting
	getCalls int
}

func (r *settingsRepoStub) GetKeys(_ context.Context, _ string, _ []string) ([]models.OrgSetting, error) {
	r.getCalls++
	return r.settings, nil
}

func (r *settingsRepoStub) Upsert(_ context.Context, setting *models.OrgSetting) error {
	r.upserted = setting
	return nil
}

type memoryCacheRepo struct {
	store map[string][]byte
}

func (c *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := c.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.store == nil {
		c.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = payload
	return nil
}

func (c *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	delete(c.store, pattern)
	return nil
}

func newSettingsServiceForTest(repo *settingsRepoStub, cacheRepo CacheRepository) *SettingsService {
	var cacheSvc *CacheService
	if cacheRepo != nil {
		cacheSvc = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	}
	return NewSettingsService(repo, cacheSvc, nil, nil, zap.NewNop(), time.Minute)
}

func TestSettingsGetCaches(t *testing.T) {
	repo := &settingsRepoStub{settings: []models.OrgSetting{
		{OrgID: "org-1", Key: models.SettingIntakeDisplayLabels, Value: json.RawMessage(`{"name":"Full name"}`)},
	}}
	svc := newSettingsServiceForTest(repo, &memoryCacheRepo{})
	ctx := context.Background()

	first, err := svc.Get(ctx, "org-1", adminActor())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls)
	assert.JSONEq(t, `{"name":"Full name"}`, string(first[models.SettingIntakeDisplayLabels]))

	second, err := svc.Get(ctx, "org-1", adminActor())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.getCalls, "second read must be served from cache")
	assert.Equal(t, first, second)
}

func TestSettingsUpdateRejectsUnknownKey(t *testing.T) {
	svc := newSettingsServiceForTest(&settingsRepoStub{}, nil)

	_, err := svc.Update(context.Background(), "org-1", adminActor(), dto.UpdateSettingRequest{
		Key:   "theme_color",
		Value: json.RawMessage(`"blue"`),
	})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestSettingsUpdateRejectsInvalidJSON(t *testing.T) {
	svc := newSettingsServiceForTest(&settingsRepoStub{}, nil)

	_, err := svc.Update(context.Background(), "org-1", adminActor(), dto.UpdateSettingRequest{
		Key:   models.SettingIntakeImportantFields,
		Value: json.RawMessage(`{"broken"`),
	})
	require.Error(t, err)
}

func TestSettingsUpdateInvalidatesCache(t *testing.T) {
	repo := &settingsRepoStub{settings: []models.OrgSetting{
		{OrgID: "org-1", Key: models.SettingIntakeImportantFields, Value: json.RawMessage(`["name"]`)},
	}}
	cacheRepo := &memoryCacheRepo{}
	svc := newSettingsServiceForTest(repo, cacheRepo)
	ctx := context.Background()

	_, err := svc.Get(ctx, "org-1", adminActor())
	require.NoError(t, err)
	assert.Len(t, cacheRepo.store, 1)

	setting, err := svc.Update(ctx, "org-1", adminActor(), dto.UpdateSettingRequest{
		Key:   models.SettingIntakeImportantFields,
		Value: json.RawMessage(`["name","contact_phone"]`),
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", setting.OrgID)
	assert.Empty(t, cacheRepo.store, "write must invalidate the cached entry")
	require.NotNil(t, repo.upserted)
}

func TestSettingsWriteForbiddenForInstructor(t *testing.T) {
	svc := newSettingsServiceForTest(&settingsRepoStub{}, nil)

	_, err := svc.Update(context.Background(), "org-1", instructorActor(), dto.UpdateSettingRequest{
		Key:   models.SettingIntakeDisplayLabels,
		Value: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Get(context.Background(), "org-1", instructorActor())
	assert.NoError(t, err, "instructors may read settings")
}
