package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
)

// SettingsRepositoryInterface persists the single settings override record.
type SettingsRepositoryInterface interface {
	// Get returns domain.ErrSettingsNotFound when no record exists.
	Get(ctx context.Context) (*domain.SettingsRecord, error)
	// Insert returns domain.ErrSettingsAlreadyExist when another record won the race.
	Insert(ctx context.Context, rec *domain.SettingsRecord) error
	// Update writes only the non-nil fields of patch.
	Update(ctx context.Context, id string, patch domain.SettingsPatch) error
}

// SettingsService resolves the effective configuration on every call.
type SettingsService struct {
	repo     SettingsRepositoryInterface
	defaults domain.EffectiveSettings
	uuidGen  UUIDGenerator
}

func NewSettingsService(repo SettingsRepositoryInterface, defaults domain.EffectiveSettings) *SettingsService {
	return NewSettingsServiceWithUUIDGen(repo, defaults, &DefaultUUIDGenerator{})
}

func NewSettingsServiceWithUUIDGen(repo SettingsRepositoryInterface, defaults domain.EffectiveSettings, uuidGen UUIDGenerator) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults, uuidGen: uuidGen}
}

// Defaults returns the compiled-in settings.
func (s *SettingsService) Defaults() domain.EffectiveSettings {
	return s.defaults
}

// Resolve returns the defaults merged with the stored overrides. An empty store
// is initialized with a record holding every default.
func (s *SettingsService) Resolve(ctx context.Context) (domain.EffectiveSettings, error) {
	rec, err := s.record(ctx)
	if err != nil {
		return domain.EffectiveSettings{}, err
	}
	return s.defaults.Merge(rec.Overrides), nil
}

// Apply overwrites only the fields present in patch and returns the new
// resolved settings.
func (s *SettingsService) Apply(ctx context.Context, patch domain.SettingsPatch) (domain.EffectiveSettings, error) {
	rec, err := s.record(ctx)
	if err != nil {
		return domain.EffectiveSettings{}, err
	}

	if !patch.IsEmpty() {
		if err := s.repo.Update(ctx, rec.ID, patch); err != nil {
			return domain.EffectiveSettings{}, fmt.Errorf("failed to update settings: %w", err)
		}
	}

	return s.Resolve(ctx)
}

func (s *SettingsService) record(ctx context.Context) (*domain.SettingsRecord, error) {
	rec, err := s.repo.Get(ctx)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrSettingsNotFound) {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	rec = &domain.SettingsRecord{
		ID:        s.uuidGen.NewString(),
		Overrides: s.defaults.Patch(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		if !errors.Is(err, domain.ErrSettingsAlreadyExist) {
			return nil, fmt.Errorf("failed to initialize settings: %w", err)
		}
		return s.repo.Get(ctx)
	}
	return rec, nil
}
