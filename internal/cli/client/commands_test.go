package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method      string
	Path        string
	Query       string
	Auth        string
	ContentType string
	Body        []byte
}

type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeServer(t *testing.T, handler http.HandlerFunc) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.RawQuery,
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		})
		fs.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) last(t *testing.T) recordedRequest {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.NotEmpty(t, fs.requests)
	return fs.requests[len(fs.requests)-1]
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLogin_StoresToken(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "alice@example.com" || r.PostForm.Get("password") != "s3cret-pass" {
			writeErr(w, http.StatusUnauthorized, "incorrect email or password")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"access_token": "jwt-token",
			"token_type":   "bearer",
			"expires_at":   "2030-01-01T00:00:00Z",
		})
	})

	out, err := execute(t, "login", "--api-url", srv.URL, "--email", "alice@example.com", "--password", "s3cret-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice@example.com")

	req := srv.last(t)
	assert.Equal(t, "/api/v1/auth/login", req.Path)
	assert.Equal(t, "application/x-www-form-urlencoded", req.ContentType)
	assert.Empty(t, req.Auth)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, &GlobalConfig{Token: "jwt-token", APIURL: srv.URL}, config)
}

func TestLogin_WrongPassword(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "incorrect email or password")
	})

	_, err := execute(t, "login", "--api-url", srv.URL, "--email", "a@example.com", "--password", "nope-nope")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "incorrect email or password")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestCommands_RequireToken(t *testing.T) {
	useTempConfig(t)

	_, err := execute(t, "docs", "list", "--api-url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), envToken)
}

func TestDocsUpload(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)

		assert.Equal(t, "handbook.txt", header.Filename)
		assert.Equal(t, "Leave policy.", string(content))
		assert.Equal(t, "true", r.FormValue("is_company_policy"))

		writeData(w, http.StatusAccepted, map[string]any{
			"id":                "doc-1",
			"original_filename": header.Filename,
			"status":            "processing",
		})
	})

	path := filepath.Join(t.TempDir(), "handbook.txt")
	require.NoError(t, os.WriteFile(path, []byte("Leave policy."), 0o600))

	out, err := execute(t, "docs", "upload", path, "--policy", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "doc-1  handbook.txt  processing")

	req := srv.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/documents", req.Path)
	assert.Equal(t, "Bearer tok", req.Auth)
	assert.True(t, strings.HasPrefix(req.ContentType, "multipart/form-data"))
}

func TestDocsUpload_MissingFile(t *testing.T) {
	useTempConfig(t)

	_, err := execute(t, "docs", "upload", filepath.Join(t.TempDir(), "missing.pdf"), "--token", "tok", "--api-url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestDocsList(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"id": "doc-1", "original_filename": "a.pdf", "file_type": "pdf", "file_size": 10, "status": "completed", "created_at": "2026-01-01T00:00:00Z"},
			},
			"next_cursor": "next-page",
			"has_more":    true,
		})
	})

	out, err := execute(t, "docs", "list", "-n", "1", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "a.pdf")
	assert.Contains(t, out, "--cursor next-page")
	assert.Equal(t, "limit=1", srv.last(t).Query)

	out, err = execute(t, "docs", "list", "--output", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	var list documentListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list.Items, 1)
	assert.True(t, list.HasMore)
}

func TestDocsGet_NotFound(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "document not found")
	})

	_, err := execute(t, "docs", "get", "missing", "--token", "tok", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Equal(t, "document missing not found", err.Error())
}

func TestDocsDownload(t *testing.T) {
	useTempConfig(t)
	var srv *fakeServer
	srv = newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/documents/doc-1/download":
			writeData(w, http.StatusOK, map[string]any{"download_url": srv.URL + "/blob/doc-1"})
		case "/blob/doc-1":
			_, _ = w.Write([]byte("original bytes"))
		default:
			http.NotFound(w, r)
		}
	})

	target := filepath.Join(t.TempDir(), "copy.pdf")
	out, err := execute(t, "docs", "download", "doc-1", "-o", target, "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original bytes", string(data))
}

func TestDocsDelete(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	out, err := execute(t, "docs", "delete", "doc-1", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted doc-1")

	req := srv.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/v1/documents/doc-1", req.Path)
}

func TestAsk(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"answer":                  "You get 25 days.",
			"source_documents":        []string{"handbook.pdf"},
			"return_source_documents": true,
		})
	})

	out, err := execute(t, "ask", "How", "many", "vacation", "days?", "--policy", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "You get 25 days.")
	assert.Contains(t, out, "- handbook.pdf")

	var sent chatRequest
	require.NoError(t, json.Unmarshal(srv.last(t).Body, &sent))
	assert.Equal(t, chatRequest{Query: "How many vacation days?", UseCompanyPolicy: true}, sent)
}

func TestSettingsSet_SendsOnlyChangedFields(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, settingsResponse{ChunkSize: 1000, ChunkOverlap: 200, Temperature: 0.2, TopP: 1, TopK: 6, ModelName: "gpt-4o-mini"})
	})

	out, err := execute(t, "settings", "set", "--temperature", "0.2", "--top-k", "6", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "top_k:         6")

	req := srv.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.JSONEq(t, `{"temperature":0.2,"top_k":6}`, string(req.Body))
}

func TestSettingsSet_NothingToChange(t *testing.T) {
	useTempConfig(t)

	_, err := execute(t, "settings", "set", "--token", "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}

func TestSettingsSet_Forbidden(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusForbidden, "the user doesn't have enough privileges")
	})

	_, err := execute(t, "settings", "set", "--model", "x", "--token", "tok", "--api-url", srv.URL)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusForbidden))
}

func TestWhoami(t *testing.T) {
	useTempConfig(t)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, userResponse{ID: "u1", Email: "admin@example.com", Username: "admin", IsActive: true, IsSuperuser: true})
	})

	out, err := execute(t, "whoami", "--token", "tok", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "admin <admin@example.com> superuser\n", out)
}

func TestProgressReader_ReportsProgress(t *testing.T) {
	data := []byte("hello world this is test data")

	var last int64
	pr := &progressReader{
		reader: bytes.NewReader(data),
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			assert.GreaterOrEqual(t, current, last)
			last = current
		},
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
	assert.Equal(t, int64(len(data)), last)
}
