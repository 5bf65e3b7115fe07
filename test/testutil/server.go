package testutil

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"upload-server-go/internal/app"
	"upload-server-go/internal/config"
	"upload-server-go/internal/logger"
)

// TestServer holds the in-memory test server and dependencies.
type TestServer struct {
	Server  *httptest.Server
	App     *app.ServerApp
	Config  *config.AppConfig
	TempDir string
	// Root is the canonical storage root.
	Root string
	// Outside is a directory next to the storage root that uploads must never reach.
	Outside string
}

// Options adjust the test server configuration.
type Options struct {
	CreateParents bool
}

// Setup creates a fully wired test server.
func Setup(t testing.TB) *TestServer {
	t.Helper()
	return SetupWithOptions(t, Options{})
}

// SetupWithOptions creates a fully wired test server with opts applied.
func SetupWithOptions(t testing.TB, opts Options) *TestServer {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "upload-server-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dataDir := filepath.Join(tempDir, "data")
	outsideDir := filepath.Join(tempDir, "outside")
	for _, dir := range []string{dataDir, outsideDir} {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			t.Fatalf("create dir %s: %v", dir, mkErr)
		}
	}

	cfg := &config.AppConfig{
		Env:           "test",
		Host:          "127.0.0.1",
		Port:          0,
		StorageRoot:   dataDir,
		CreateParents: opts.CreateParents,
		FileMode:      0644,
		LogLevel:      "error",
		LogFormat:     "text",
	}

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	logger.Init(logger.Config{Output: io.Discard, MinLevel: logger.ERROR})

	router, err := a.Router()
	if err != nil {
		t.Fatalf("build router: %v", err)
	}

	outside, err := filepath.EvalSymlinks(outsideDir)
	if err != nil {
		t.Fatalf("resolve outside dir: %v", err)
	}

	return &TestServer{
		Server:  httptest.NewTLSServer(router),
		App:     a,
		Config:  cfg,
		TempDir: tempDir,
		Root:    a.Root.Path(),
		Outside: outside,
	}
}

// Cleanup stops server resources and removes temp artifacts.
func (ts *TestServer) Cleanup() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	if ts.TempDir != "" {
		_ = os.RemoveAll(ts.TempDir)
	}
}

func (ts *TestServer) NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

func (ts *TestServer) WebSocketURL(path string) string {
	return strings.Replace(ts.Server.URL, "https://", "wss://", 1) + path
}

// Upload posts a JSON upload request and returns the status code and decoded body.
func (ts *TestServer) Upload(t testing.TB, path, contents string) (int, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"path": path, "contents": contents})
	if err != nil {
		t.Fatalf("encode upload: %v", err)
	}

	resp, err := ts.NewHTTPClient().Post(ts.Server.URL+"/upload", "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode upload response status=%d body=%s: %v", resp.StatusCode, string(raw), err)
	}
	return resp.StatusCode, body
}

// MustMkdir creates dir (relative to the storage root).
func (ts *TestServer) MustMkdir(t testing.TB, rel string) string {
	t.Helper()
	dir := filepath.Join(ts.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("create dir %s: %v", dir, err)
	}
	return dir
}

// ReadFile reads a file relative to the storage root.
func (ts *TestServer) ReadFile(t testing.TB, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ts.Root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// AssertEmptyDir fails when dir contains any entries.
func AssertEmptyDir(t testing.TB, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected %s to be empty, found %v", dir, names)
	}
}
