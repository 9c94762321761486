package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of a queued ingestion
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob is one unit of background ingestion work, keyed by document id.
// Content holds the uploaded bytes until the job reaches a terminal status.
type IngestJob struct {
	ID              string          `json:"id"`
	DocumentID      string          `json:"document_id"`
	Filename        string          `json:"filename"`
	IsCompanyPolicy bool            `json:"is_company_policy"`
	Content         []byte          `json:"content"`
	Status          IngestJobStatus `json:"status"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ClaimedAt       *time.Time      `json:"claimed_at,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
}

// NewIngestJob creates a pending IngestJob for a document. The job carries
// the name the file was uploaded under.
func NewIngestJob(id string, doc *Document, content []byte, createdAt time.Time) *IngestJob {
	return &IngestJob{
		ID:              id,
		DocumentID:      doc.ID,
		Filename:        doc.OriginalFilename,
		IsCompanyPolicy: doc.IsCompanyPolicy,
		Content:         content,
		Status:          IngestJobStatusPending,
		CreatedAt:       createdAt,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}

	if j.DocumentID == "" {
		return fmt.Errorf("ingest job DocumentID is required")
	}

	if j.Filename == "" {
		return fmt.Errorf("ingest job Filename is required")
	}

	if !isValidIngestJobStatus(j.Status) {
		return fmt.Errorf("ingest job Status is invalid: %s", j.Status)
	}

	return nil
}

// isValidIngestJobStatus checks if an IngestJobStatus is valid
func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
