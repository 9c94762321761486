package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ragdesk/internal/api"
	"github.com/cloo-solutions/ragdesk/internal/service"
)

type ChatService interface {
	Answer(ctx context.Context, in service.AskInput) *service.AskResult
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Query            string `json:"query" validate:"required,max=8000"`
	UseCompanyPolicy bool   `json:"use_company_policy"`
	DocumentID       string `json:"document_id,omitempty"`
}

type ChatResponse struct {
	Answer                string   `json:"answer"`
	SourceDocuments       []string `json:"source_documents"`
	ReturnSourceDocuments bool     `json:"return_source_documents"`
}

// Ask always answers 200. Pipeline failures come back as an "Error: ..."
// answer with no sources.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	result := h.svc.Answer(r.Context(), service.AskInput{
		Query:      req.Query,
		PolicyOnly: req.UseCompanyPolicy,
		DocumentID: req.DocumentID,
	})

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	api.Success(w, http.StatusOK, ChatResponse{
		Answer:                result.Answer,
		SourceDocuments:       sources,
		ReturnSourceDocuments: true,
	})
}
