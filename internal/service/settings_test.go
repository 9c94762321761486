package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_ResolveInitializesEmptyStore(t *testing.T) {
	repo := &fakeSettingsRepository{}
	svc := NewSettingsServiceWithUUIDGen(repo, domain.DefaultSettings(), NewMockUUIDGenerator("settings-1"))
	ctx := context.Background()

	got, err := svc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, "settings-1", repo.rec.ID)
	assert.Equal(t, domain.DefaultSettings(), domain.EffectiveSettings{}.Merge(repo.rec.Overrides))

	_, err = svc.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.inserts, "initialized exactly once")
}

func TestSettingsService_ApplyOverwritesOnlyPresentFields(t *testing.T) {
	repo := &fakeSettingsRepository{}
	svc := NewSettingsService(repo, domain.DefaultSettings())
	ctx := context.Background()

	before, err := svc.Resolve(ctx)
	require.NoError(t, err)

	temp := 0.2
	applied, err := svc.Apply(ctx, domain.SettingsPatch{Temperature: &temp})
	require.NoError(t, err)

	after, err := svc.Resolve(ctx)
	require.NoError(t, err)

	want := before
	want.Temperature = 0.2
	assert.Equal(t, want, applied)
	assert.Equal(t, want, after)
}

func TestSettingsService_ApplyOnEmptyStore(t *testing.T) {
	repo := &fakeSettingsRepository{}
	svc := NewSettingsService(repo, domain.DefaultSettings())

	model := "claude-3-5-haiku-latest"
	got, err := svc.Apply(context.Background(), domain.SettingsPatch{ModelName: &model})

	require.NoError(t, err)
	assert.Equal(t, model, got.ModelName)
	assert.Equal(t, 1, repo.inserts)
}

func TestSettingsService_StoredOverridesWinOverDefaults(t *testing.T) {
	topK := 9
	repo := &fakeSettingsRepository{rec: &domain.SettingsRecord{ID: "s1", Overrides: domain.SettingsPatch{TopK: &topK}}}
	svc := NewSettingsService(repo, domain.DefaultSettings())

	got, err := svc.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 9, got.TopK)
	assert.Equal(t, domain.DefaultSettings().ChunkSize, got.ChunkSize)
	assert.Equal(t, 0, repo.inserts)
}

func TestSettingsService_InsertRaceRereads(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsServiceWithUUIDGen(repo, domain.DefaultSettings(), NewMockUUIDGenerator("mine"))
	ctx := context.Background()

	topK := 2
	winner := &domain.SettingsRecord{ID: "theirs", Overrides: domain.SettingsPatch{TopK: &topK}}
	repo.On("Get", ctx).Return(nil, domain.ErrSettingsNotFound).Once()
	repo.On("Insert", ctx, mock.AnythingOfType("*domain.SettingsRecord")).Return(domain.ErrSettingsAlreadyExist).Once()
	repo.On("Get", ctx).Return(winner, nil).Once()

	got, err := svc.Resolve(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, got.TopK)
	repo.AssertExpectations(t)
}

func TestSettingsService_ReadErrorPropagates(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, domain.DefaultSettings())
	ctx := context.Background()

	dbErr := errors.New("connection refused")
	repo.On("Get", ctx).Return(nil, dbErr)

	_, err := svc.Resolve(ctx)

	assert.ErrorIs(t, err, dbErr)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSettingsService_EmptyPatchSkipsUpdate(t *testing.T) {
	repo := new(MockSettingsRepository)
	svc := NewSettingsService(repo, domain.DefaultSettings())
	ctx := context.Background()

	repo.On("Get", ctx).Return(&domain.SettingsRecord{ID: "s1"}, nil)

	got, err := svc.Apply(ctx, domain.SettingsPatch{})

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
