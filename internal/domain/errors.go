package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code and message, so a sentinel
// matches the same error after a cause has been attached to it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Wrap returns a copy of the sentinel with the given cause attached.
func (e *DomainError) Wrap(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// HasCode reports whether any DomainError in err's chain carries code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// RAG pipeline error codes
const (
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeEmbeddingProvider = "EMBEDDING_PROVIDER_ERROR"
	ErrCodeVectorStore       = "VECTOR_STORE_ERROR"
	ErrCodeGeneration        = "GENERATION_ERROR"
)

// Validation errors
var (
	ErrInvalidDocumentStatus  = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidIngestJobStatus = NewDomainError(ErrCodeValidation, "invalid ingest job status")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery             = NewDomainError(ErrCodeValidation, "query cannot be empty")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrUserNotFound      = NewDomainError(ErrCodeNotFound, "user not found")
	ErrSettingsNotFound  = NewDomainError(ErrCodeNotFound, "settings not found")
	ErrIngestJobNotFound = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Already exists errors
var (
	ErrEmailAlreadyExists    = NewDomainError(ErrCodeAlreadyExists, "email already registered")
	ErrUsernameAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "username already taken")
	ErrSettingsAlreadyExist  = NewDomainError(ErrCodeAlreadyExists, "settings record already exists")
)

// Authorization errors
var (
	ErrInvalidCredentials = NewDomainError(ErrCodeUnauthorized, "incorrect email or password")
	ErrInvalidToken       = NewDomainError(ErrCodeUnauthorized, "could not validate credentials")
	ErrInactiveUser       = NewDomainError(ErrCodeValidation, "inactive user")
	ErrNotSuperuser       = NewDomainError(ErrCodeForbidden, "not enough permissions")
)

// Operation errors
var (
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidOperation, "invalid document status transition")
	ErrArchiveNotConfigured    = NewDomainError(ErrCodeInvalidOperation, "document archive not configured")
)

// RAG pipeline errors
var (
	ErrInvalidChunking     = NewDomainError(ErrCodeConfiguration, "invalid chunking configuration")
	ErrUnsupportedFormat   = NewDomainError(ErrCodeUnsupportedFormat, "unsupported file type")
	ErrEmbeddingFailed     = NewDomainError(ErrCodeEmbeddingProvider, "embedding request failed")
	ErrVectorStoreFailed   = NewDomainError(ErrCodeVectorStore, "vector store operation failed")
	ErrGenerationFailed    = NewDomainError(ErrCodeGeneration, "language model invocation failed")
	ErrModelNotConfigured  = NewDomainError(ErrCodeConfiguration, "no credentials configured for model provider")
	ErrEmptyChunkFilter    = NewDomainError(ErrCodeVectorStore, "refusing to delete with an empty filter")
	ErrEmbeddingDimensions = NewDomainError(ErrCodeEmbeddingProvider, "embedding has wrong dimensions")
)
