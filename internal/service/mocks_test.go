package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/llm"
	"github.com/cloo-solutions/ragdesk/internal/loader"
	"github.com/cloo-solutions/ragdesk/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockUUIDGenerator returns the given ids in order.
type MockUUIDGenerator struct {
	uuids []string
	index int
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.index >= len(m.uuids) {
		return "extra-uuid"
	}
	id := m.uuids[m.index]
	m.index++
	return id
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.Document], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Page[*domain.Document]), args.Error(1)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id string, to domain.DocumentStatus, errMsg string) error {
	args := m.Called(ctx, id, to, errMsg)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// fakeDocumentRepository stores documents in memory and enforces forward-only
// status transitions the way the SQL repository does.
type fakeDocumentRepository struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	transitions map[string][]domain.DocumentStatus
}

func newFakeDocumentRepository(docs ...*domain.Document) *fakeDocumentRepository {
	r := &fakeDocumentRepository{docs: map[string]*domain.Document{}, transitions: map[string][]domain.DocumentStatus{}}
	for _, d := range docs {
		cp := *d
		r.docs[d.ID] = &cp
		r.transitions[d.ID] = []domain.DocumentStatus{d.Status}
	}
	return r
}

func (r *fakeDocumentRepository) Create(_ context.Context, d *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.docs[d.ID] = &cp
	r.transitions[d.ID] = []domain.DocumentStatus{d.Status}
	return nil
}

func (r *fakeDocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDocumentRepository) ListWithCursor(context.Context, *pagination.Cursor, int) (*pagination.Page[*domain.Document], error) {
	return &pagination.Page[*domain.Document]{}, nil
}

func (r *fakeDocumentRepository) UpdateStatus(_ context.Context, id string, to domain.DocumentStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if !domain.CanTransition(d.Status, to) {
		return domain.ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	d.Status = to
	d.Error = errMsg
	d.UpdatedAt = &now
	r.transitions[id] = append(r.transitions[id], to)
	return nil
}

func (r *fakeDocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeDocumentRepository) history(id string) []domain.DocumentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DocumentStatus(nil), r.transitions[id]...)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockVectorStore) Search(ctx context.Context, embedding []float32, k int, filter domain.ChunkFilter) ([]domain.Chunk, error) {
	args := m.Called(ctx, embedding, k, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockVectorStore) Delete(ctx context.Context, filter domain.ChunkFilter) error {
	args := m.Called(ctx, filter)
	return args.Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// hashEmbedder derives a deterministic 8-dimensional vector from the text.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	vec := make([]float32, 8)
	for i := range vec {
		vec[i] = float32((sum>>(i*8))&0xff) + 1
	}
	return vec, nil
}

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, content []byte, ext string) ([]loader.Section, error) {
	args := m.Called(ctx, content, ext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loader.Section), args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*domain.SettingsRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettingsRecord), args.Error(1)
}

func (m *MockSettingsRepository) Insert(ctx context.Context, rec *domain.SettingsRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockSettingsRepository) Update(ctx context.Context, id string, patch domain.SettingsPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

// fakeSettingsRepository keeps at most one record, like the singleton table.
type fakeSettingsRepository struct {
	mu      sync.Mutex
	rec     *domain.SettingsRecord
	inserts int
}

func (r *fakeSettingsRepository) Get(context.Context) (*domain.SettingsRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil, domain.ErrSettingsNotFound
	}
	cp := *r.rec
	return &cp, nil
}

func (r *fakeSettingsRepository) Insert(_ context.Context, rec *domain.SettingsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		return domain.ErrSettingsAlreadyExist
	}
	cp := *rec
	r.rec = &cp
	r.inserts++
	return nil
}

func (r *fakeSettingsRepository) Update(_ context.Context, id string, patch domain.SettingsPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil || r.rec.ID != id {
		return domain.ErrSettingsNotFound
	}
	merged := domain.SettingsPatch{}
	base := r.rec.Overrides
	for _, p := range []domain.SettingsPatch{base, patch} {
		if p.ChunkSize != nil {
			merged.ChunkSize = p.ChunkSize
		}
		if p.ChunkOverlap != nil {
			merged.ChunkOverlap = p.ChunkOverlap
		}
		if p.Temperature != nil {
			merged.Temperature = p.Temperature
		}
		if p.TopP != nil {
			merged.TopP = p.TopP
		}
		if p.TopK != nil {
			merged.TopK = p.TopK
		}
		if p.ModelName != nil {
			merged.ModelName = p.ModelName
		}
	}
	r.rec.Overrides = merged
	return nil
}

// staticSettings always resolves to the same settings or error.
type staticSettings struct {
	settings domain.EffectiveSettings
	err      error
}

func (s staticSettings) Resolve(context.Context) (domain.EffectiveSettings, error) {
	return s.settings, s.err
}

type MockModelFactory struct {
	mock.Mock
}

func (m *MockModelFactory) New(ctx context.Context, p llm.Params) (llm.Model, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(llm.Model), args.Error(1)
}

type MockModel struct {
	mock.Mock
}

func (m *MockModel) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type MockIngestQueue struct {
	mock.Mock
}

func (m *MockIngestQueue) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockArchive) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockArchive) GenerateDownloadURL(ctx context.Context, key, filename string) (string, error) {
	args := m.Called(ctx, key, filename)
	return args.String(0), args.Error(1)
}

type MockChunkRemover struct {
	mock.Mock
}

func (m *MockChunkRemover) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}
