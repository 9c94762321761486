package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestChatHandler_Ask(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, service.AskInput{Query: "How many leave days?", PolicyOnly: true, DocumentID: "doc-1"}).
		Return(&service.AskResult{Answer: "25 days.", Sources: []string{"handbook.pdf"}})

	body := `{"query":"How many leave days?","use_company_policy":true,"document_id":"doc-1"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp ChatResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "25 days.", resp.Answer)
	assert.Equal(t, []string{"handbook.pdf"}, resp.SourceDocuments)
	assert.True(t, resp.ReturnSourceDocuments)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_PipelineFailureStillAnswers(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)
	mockSvc.On("Answer", mock.Anything, mock.Anything).Return(&service.AskResult{Answer: "Error: provider down"})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"hi"}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source_documents":[]`)
	assert.Contains(t, w.Body.String(), "Error: provider down")
}

func TestChatHandler_RejectsEmptyQuery(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":""}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}
