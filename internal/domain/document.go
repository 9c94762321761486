package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the ingestion state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the metadata record of one uploaded source file. Its chunks live
// in the vector store and are linked only through chunk metadata.
type Document struct {
	ID               string
	Filename         string
	OriginalFilename string
	FileType         string
	FileSize         int64
	IsCompanyPolicy  bool
	UploadedBy       string
	Status           DocumentStatus
	Error            string
	CreatedAt        time.Time
	UpdatedAt        *time.Time // nil until the first transition
}

// NewDocument creates a Document that is already handed to ingestion.
func NewDocument(id, filename, originalFilename, fileType string, size int64, isPolicy bool, uploadedBy string, createdAt time.Time) *Document {
	return &Document{
		ID:               id,
		Filename:         filename,
		OriginalFilename: originalFilename,
		FileType:         fileType,
		FileSize:         size,
		IsCompanyPolicy:  isPolicy,
		UploadedBy:       uploadedBy,
		Status:           DocumentStatusProcessing,
		CreatedAt:        createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.FileType == "" {
		return fmt.Errorf("document FileType is required")
	}

	if d.FileSize < 0 {
		return fmt.Errorf("document FileSize cannot be negative")
	}

	if !IsValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// IsValidDocumentStatus checks if a DocumentStatus is valid
func IsValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// CanTransition reports whether a document may move from one status to another.
// Statuses only move forward: pending -> processing -> completed | failed.
func CanTransition(from, to DocumentStatus) bool {
	for _, p := range Predecessors(to) {
		if p == from {
			return true
		}
	}
	return false
}

// Predecessors returns the statuses a document may be in right before to.
func Predecessors(to DocumentStatus) []DocumentStatus {
	switch to {
	case DocumentStatusProcessing:
		return []DocumentStatus{DocumentStatusPending}
	case DocumentStatusCompleted, DocumentStatusFailed:
		return []DocumentStatus{DocumentStatusProcessing}
	}
	return nil
}
