//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/cli"
	"github.com/cloo-solutions/ragkit/internal/config"
	"github.com/cloo-solutions/ragkit/internal/server"
	"github.com/cloo-solutions/ragkit/internal/storage"
	"github.com/cloo-solutions/ragkit/internal/testutil"
)

const testBucket = "e2e-documents"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	OpenAI       *testutil.FakeOpenAI
	Pipeline     *cli.Pipeline
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, seeds the bucket with documents
// and serves the pgvector-backed pipeline over HTTP.
func SetupE2EEnv(t *testing.T, documents map[string]string) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	fake := testutil.NewFakeOpenAI(t)

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		OpenAI:     fake,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     s3C.AccessKey,
		SecretAccessKey: s3C.SecretKey,
		Bucket:          testBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	for key, content := range documents {
		if err := s3Client.PutObject(ctx, key, []byte(content), "text/plain"); err != nil {
			t.Fatalf("failed to upload %s: %v", key, err)
		}
	}
	env.S3Client = s3Client

	cfg := env.Config()
	p, err := cli.BuildPipeline(ctx, cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	env.Pipeline = p

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL, env.ServerCloser = startServer(t, p, port)

	return env
}

// Config is the server configuration used by the environment.
func (e *E2ETestEnv) Config() *config.Config {
	return &config.Config{
		DocumentExtensions:  []string{".txt", ".md"},
		ChunkStrategy:       "fixed",
		ChunkSize:           1000,
		ChunkOverlap:        200,
		Concurrency:         4,
		RequestBurst:        1,
		SearchLimit:         5,
		OpenAIAPIKey:        "sk-test",
		OpenAIBaseURL:       e.OpenAI.BaseURL(),
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: e.OpenAI.Dimensions(),
		ChatModel:           "gpt-4o-mini",
		Similarity:          "cosine",
		IndexBackend:        config.BackendPGVector,
		DatabaseURL:         e.PostgresC.ConnectionString(),
		DBMaxConns:          4,
		S3Endpoint:          e.RustFSC.Endpoint(),
		S3AccessKey:         e.RustFSC.AccessKey,
		S3SecretKey:         e.RustFSC.SecretKey,
		S3Bucket:            testBucket,
		S3Region:            "us-east-1",
		Environment:         config.DefaultEnvironment,
		ReindexInterval:     time.Second,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pipeline != nil {
		e.Pipeline.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// BuildCLI builds the ragkit binary.
func (e *E2ETestEnv) BuildCLI() {
	tmpDir, err := os.MkdirTemp("", "ragkit-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "ragkit"), "./cmd/ragkit")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build ragkit: %v\n%s", err, out)
	}
}

// RunCLI runs ragkit against the test server.
func (e *E2ETestEnv) RunCLI(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragkit"), args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("RAGKIT_API_URL=%s", e.ServerURL))
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Response   APIResponse
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Response.Error)
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

// PostInto performs a POST request and decodes the data envelope into out.
func (e *E2ETestEnv) PostInto(path string, body, out any) error {
	resp, err := e.Post(path, body)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp.Data, out)
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Response: apiResp}
	}

	return &apiResp, nil
}

func startServer(t *testing.T, p *cli.Pipeline, port int) (string, func()) {
	router := server.NewRouter(server.RouterConfig{
		RetrievalHandler: handlers.NewRetrievalHandler(p.Service, p.Source),
		AccessLogger:     log.New(io.Discard, "", 0),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
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
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
