package domain

import "time"

// EffectiveSettings is the fully resolved retrieval and generation configuration
// used by one ingestion or chat operation.
type EffectiveSettings struct {
	ChunkSize    int     `json:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	TopK         int     `json:"top_k"`
	ModelName    string  `json:"model_name"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() EffectiveSettings {
	return EffectiveSettings{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Temperature:  0.7,
		TopP:         1.0,
		TopK:         4,
		ModelName:    "gpt-3.5-turbo",
	}
}

// SettingsPatch holds optional overrides. Nil fields are absent.
type SettingsPatch struct {
	ChunkSize    *int     `json:"chunk_size,omitempty" validate:"omitempty,gte=100,lte=5000"`
	ChunkOverlap *int     `json:"chunk_overlap,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP         *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK         *int     `json:"top_k,omitempty" validate:"omitempty,gte=1"`
	ModelName    *string  `json:"model_name,omitempty" validate:"omitempty,min=1,max=200"`
}

// IsEmpty reports whether no field is present.
func (p SettingsPatch) IsEmpty() bool {
	return p.ChunkSize == nil && p.ChunkOverlap == nil && p.Temperature == nil &&
		p.TopP == nil && p.TopK == nil && p.ModelName == nil
}

// Merge returns s with every present field of p applied.
func (s EffectiveSettings) Merge(p SettingsPatch) EffectiveSettings {
	if p.ChunkSize != nil {
		s.ChunkSize = *p.ChunkSize
	}
	if p.ChunkOverlap != nil {
		s.ChunkOverlap = *p.ChunkOverlap
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		s.TopP = *p.TopP
	}
	if p.TopK != nil {
		s.TopK = *p.TopK
	}
	if p.ModelName != nil {
		s.ModelName = *p.ModelName
	}
	return s
}

// Patch returns a patch with every field of s present.
func (s EffectiveSettings) Patch() SettingsPatch {
	return SettingsPatch{
		ChunkSize:    &s.ChunkSize,
		ChunkOverlap: &s.ChunkOverlap,
		Temperature:  &s.Temperature,
		TopP:         &s.TopP,
		TopK:         &s.TopK,
		ModelName:    &s.ModelName,
	}
}

// SettingsRecord is the single persisted override record.
type SettingsRecord struct {
	ID        string
	Overrides SettingsPatch
	CreatedAt time.Time
	UpdatedAt *time.Time
}
