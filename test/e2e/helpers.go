//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/testutil"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass-123"
	dimensions    = 1536
)

// E2ETestEnv runs the real ragdeskd binary against containers and a fake
// OpenAI-compatible provider.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	Postgres  *testutil.Postgres
	RustFS    *testutil.RustFS
	Provider  *httptest.Server
	ServerURL string
	BinaryDir string
	HomeDir   string

	daemon *exec.Cmd
}

// SetupE2EEnv starts containers, builds the binaries and launches ragdeskd.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	env := &E2ETestEnv{
		T:        t,
		Ctx:      ctx,
		Postgres: testutil.StartPostgres(t),
		RustFS:   testutil.StartRustFS(t),
		Provider: httptest.NewServer(fakeProvider()),
		HomeDir:  t.TempDir(),
	}

	env.BuildBinaries()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL = fmt.Sprintf("http://localhost:%d", port)

	env.daemon = exec.Command(filepath.Join(env.BinaryDir, "ragdeskd"), "serve")
	env.daemon.Dir = env.HomeDir
	env.daemon.Env = append(env.daemonEnv(), fmt.Sprintf("RAGDESK_PORT=%d", port))
	env.daemon.Stdout = os.Stderr
	env.daemon.Stderr = os.Stderr
	if err := env.daemon.Start(); err != nil {
		t.Fatalf("failed to start ragdeskd: %v", err)
	}

	waitForServer(t, env.ServerURL, 60*time.Second)
	return env
}

func (e *E2ETestEnv) daemonEnv() []string {
	return append(os.Environ(),
		"RAGDESK_DATABASE_URL="+e.Postgres.URL,
		"RAGDESK_OPENAI_API_KEY=sk-e2e",
		"RAGDESK_OPENAI_BASE_URL="+e.Provider.URL+"/v1",
		"RAGDESK_JWT_SECRET=e2e-secret",
		"RAGDESK_INIT_ADMIN_EMAIL="+adminEmail,
		"RAGDESK_INIT_ADMIN_PASSWORD="+adminPassword,
		"RAGDESK_S3_ENDPOINT="+e.RustFS.Endpoint,
		"RAGDESK_S3_ACCESS_KEY_ID="+testutil.RustFSAccessKey,
		"RAGDESK_S3_SECRET_ACCESS_KEY="+testutil.RustFSSecretKey,
		"RAGDESK_S3_BUCKET=e2e-documents",
		"RAGDESK_WORKER_POLL_INTERVAL=200ms",
		"RAGDESK_LOG_LEVEL=warn",
	)
}

// Cleanup stops the daemon and the fake provider. Containers go with t.
func (e *E2ETestEnv) Cleanup() {
	if e.daemon != nil && e.daemon.Process != nil {
		_ = e.daemon.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() {
			_ = e.daemon.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(15 * time.Second):
			_ = e.daemon.Process.Kill()
		}
	}
	if e.Provider != nil {
		e.Provider.Close()
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the ragdesk and ragdeskd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "ragdesk-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"ragdeskd", "ragdesk"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunRagdesk runs the client CLI with credentials stored under HomeDir.
func (e *E2ETestEnv) RunRagdesk(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragdesk"), args...)
	cmd.Dir = e.HomeDir
	cmd.Env = append(os.Environ(),
		"HOME="+e.HomeDir,
		"XDG_CONFIG_HOME="+filepath.Join(e.HomeDir, ".config"),
		"RAGDESK_API_URL="+e.ServerURL,
		"RAGDESK_TOKEN=",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunRagdeskJSON runs the client CLI with --output and decodes the result.
func (e *E2ETestEnv) RunRagdeskJSON(v any, args ...string) {
	e.T.Helper()
	out, err := e.RunRagdesk(append(args, "--output")...)
	if err != nil {
		e.T.Fatalf("ragdesk %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		e.T.Fatalf("ragdesk %s: invalid JSON: %v\n%s", strings.Join(args, " "), err, out)
	}
}

// RunRagdeskd runs an administrative ragdeskd command against the database.
func (e *E2ETestEnv) RunRagdeskd(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragdeskd"), args...)
	cmd.Dir = e.HomeDir
	cmd.Env = e.daemonEnv()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// WriteFile creates a file under HomeDir and returns its path.
func (e *E2ETestEnv) WriteFile(name, content string) string {
	path := filepath.Join(e.HomeDir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		e.T.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// fakeProvider serves the OpenAI embeddings and chat completions endpoints.
// Embeddings are hashed bags of words, so texts sharing words are close.
// The chat reply quotes the first prompt line mentioning "per year".
func fakeProvider() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": bagOfWords(text)}
		}
		writeJSON(w, map[string]any{"object": "list", "model": req.Model, "data": data})
	})

	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		answer := "I don't know."
		for _, line := range strings.Split(req.Messages[0].Content, "\n") {
			if strings.Contains(line, "per year") {
				answer = strings.TrimSpace(line)
				break
			}
		}

		writeJSON(w, map[string]any{
			"id":      "chatcmpl-e2e",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": answer}}},
		})
	})

	return mux
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!:;\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
