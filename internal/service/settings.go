package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/commandgrid/pmt/internal/cache"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

// SettingsSections lists the sections of a settings document.
var SettingsSections = []string{
	"appearance", "notifications", "privacy", "language", "sound", "accessibility", "keyboard", "ai",
}

// SettingsCache caches settings documents. Implemented by cache.Cache.
type SettingsCache interface {
	GetSettings(ctx context.Context, userID string) (model.RawJSON, error)
	SetSettings(ctx context.Context, userID string, doc model.RawJSON) error
	DeleteSettings(ctx context.Context, userID string) error
}

// Settings is a user settings document keyed by section.
type Settings map[string]json.RawMessage

// SettingsService stores per-user settings with a read-through cache.
type SettingsService struct {
	repo    *repository.Repository
	cache   SettingsCache
	aiModel string
	logger  *slog.Logger
}

// NewSettingsService creates a new SettingsService. cache may be nil.
func NewSettingsService(repo *repository.Repository, cache SettingsCache, aiModel string, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{repo: repo, cache: cache, aiModel: aiModel, logger: logger.With("component", "service.settings")}
}

// DefaultSettings returns the document used for new users.
func DefaultSettings(aiModel string) Settings {
	sections := map[string]any{
		"appearance":    map[string]any{"theme": "light", "fontSize": "medium", "compactMode": false},
		"notifications": map[string]any{"email": true, "push": true, "desktop": true, "digest": "daily"},
		"privacy":       map[string]any{"profileVisibility": "company", "showOnlineStatus": true},
		"language":      map[string]any{"code": "en", "dateFormat": "YYYY-MM-DD", "timezone": "UTC"},
		"sound":         map[string]any{"enabled": true, "volume": 70},
		"accessibility": map[string]any{"highContrast": false, "reduceMotion": false, "screenReader": false},
		"keyboard":      map[string]any{"shortcuts": true},
		"ai":            map[string]any{"enabled": true, "suggestions": true, "model": aiModel},
	}
	doc := make(Settings, len(sections))
	for name, value := range sections {
		raw, _ := json.Marshal(value)
		doc[name] = raw
	}
	return doc
}

// Get returns the user's settings, storing defaults on first access.
func (s *SettingsService) Get(ctx context.Context, userID string) (Settings, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSettings(ctx, userID)
		if err == nil {
			var doc Settings
			if json.Unmarshal(cached, &doc) == nil {
				return doc, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("settings_cache_read_failed", "error", err)
		}
	}

	raw, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return s.save(ctx, userID, DefaultSettings(s.aiModel))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	var doc Settings
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.fill(doc)
	s.store(ctx, userID, doc)
	return doc, nil
}

// Replace stores a full document. Sections not present keep their defaults.
func (s *SettingsService) Replace(ctx context.Context, userID string, doc Settings) (Settings, error) {
	if err := ValidateSettings(doc); err != nil {
		return nil, err
	}
	s.fill(doc)
	return s.save(ctx, userID, doc)
}

// UpdateSection replaces one section of the user's document.
func (s *SettingsService) UpdateSection(ctx context.Context, userID, section string, value json.RawMessage) (Settings, error) {
	if !slices.Contains(SettingsSections, section) {
		return nil, ErrSectionNotFound
	}
	if !isJSONObject(value) {
		return nil, ErrInvalidSettings
	}

	doc, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc[section] = value
	return s.save(ctx, userID, doc)
}

// Reset restores the default document.
func (s *SettingsService) Reset(ctx context.Context, userID string) (Settings, error) {
	return s.save(ctx, userID, DefaultSettings(s.aiModel))
}

// ValidateSettings rejects unknown sections and non-object values.
func ValidateSettings(doc Settings) error {
	if len(doc) == 0 {
		return ErrInvalidSettings
	}
	for name, value := range doc {
		if !slices.Contains(SettingsSections, name) || !isJSONObject(value) {
			return ErrInvalidSettings
		}
	}
	return nil
}

func (s *SettingsService) save(ctx context.Context, userID string, doc Settings) (Settings, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.repo.UpsertSettings(ctx, userID, raw); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteSettings(ctx, userID); err != nil {
			s.logger.Warn("settings_cache_invalidate_failed", "error", err)
		}
	}
	return doc, nil
}

func (s *SettingsService) store(ctx context.Context, userID string, doc Settings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := s.cache.SetSettings(ctx, userID, raw); err != nil {
		s.logger.Warn("settings_cache_write_failed", "error", err)
	}
}

// fill adds default values for missing sections.
func (s *SettingsService) fill(doc Settings) {
	for name, value := range DefaultSettings(s.aiModel) {
		if _, ok := doc[name]; !ok {
			doc[name] = value
		}
	}
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]any
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
