package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"isp-agent-service/internal/models"
)

type SettingsStore interface {
	GetSettings(ctx context.Context) (models.SystemSettings, error)
}

// SettingsCatalog caches the deployment-wide model settings. Environment
// values fill in whatever the settings row leaves empty.
type SettingsCatalog struct {
	Store         SettingsStore
	FallbackKey   string
	FallbackModel string

	mu        sync.RWMutex
	cached    models.SystemSettings
	cachedAt  time.Time
	cacheTTL  time.Duration
	lastError error
}

func NewSettingsCatalog(store SettingsStore, fallbackKey, fallbackModel string, ttl time.Duration) *SettingsCatalog {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &SettingsCatalog{
		Store:         store,
		FallbackKey:   strings.TrimSpace(fallbackKey),
		FallbackModel: strings.TrimSpace(fallbackModel),
		cacheTTL:      ttl,
	}
}

func (c *SettingsCatalog) Fetch(ctx context.Context) (models.SystemSettings, error) {
	c.mu.RLock()
	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.cacheTTL {
		s := c.cached
		err := c.lastError
		c.mu.RUnlock()
		if err != nil {
			return c.withFallback(models.SystemSettings{}), err
		}
		return s, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.cacheTTL {
		if c.lastError != nil {
			return c.withFallback(models.SystemSettings{}), c.lastError
		}
		return c.cached, nil
	}

	var s models.SystemSettings
	if c.Store != nil {
		var err error
		s, err = c.Store.GetSettings(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			c.cachedAt = time.Now()
			c.lastError = err
			return c.withFallback(models.SystemSettings{}), err
		}
	}

	c.cached = c.withFallback(s)
	c.cachedAt = time.Now()
	c.lastError = nil
	return c.cached, nil
}

func (c *SettingsCatalog) withFallback(s models.SystemSettings) models.SystemSettings {
	if strings.TrimSpace(s.ModelAPIKey) == "" {
		s.ModelAPIKey = c.FallbackKey
	}
	if strings.TrimSpace(s.ModelName) == "" {
		s.ModelName = c.FallbackModel
	}
	if s.ModelName == "" {
		s.ModelName = "gpt-4o-mini"
	}
	return s
}

// Invalidate drops the cached row so the next Fetch hits the store.
func (c *SettingsCatalog) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
