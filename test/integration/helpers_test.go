//go:build integration

package integration_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vyrodovalexey/phonebook-api/internal/model"
	"github.com/vyrodovalexey/phonebook-api/internal/store"
)

// Environment variable names for integration test configuration.
const (
	EnvServerURL = "INTEGRATION_SERVER_URL"
	EnvProbeURL  = "INTEGRATION_PROBE_URL"
	EnvSQLiteDSN = "INTEGRATION_SQLITE_DSN"
)

// Default configuration values.
const (
	DefaultServerURL = "http://localhost:3001"
	DefaultProbeURL  = "http://localhost:9090"
	DefaultTimeout   = 10 * time.Second
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func serverURL() string {
	return getEnvOrDefault(EnvServerURL, DefaultServerURL)
}

func probeURL() string {
	return getEnvOrDefault(EnvProbeURL, DefaultProbeURL)
}

// skipIfServiceUnavailable checks whether the service at the given
// URL is reachable and skips the test if it is not.
func skipIfServiceUnavailable(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Skipf("Service unavailable at %s: %v", url, err)
	}
	resp.Body.Close()
}

// createHTTPClient returns an *http.Client with a sensible timeout
// for integration tests.
func createHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// openSQLiteStore opens a file-backed SQLite store. The DSN comes from
// INTEGRATION_SQLITE_DSN or points into a per-test temp directory.
func openSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dsn := os.Getenv(EnvSQLiteDSN)
	if dsn == "" {
		dsn = "file:" + filepath.Join(t.TempDir(), "phonebook.db")
	}

	s, err := store.NewSQLiteStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to open sqlite store %q: %v", dsn, err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// seedStore loads the default persons into s.
func seedStore(t *testing.T, s store.Seeder) {
	t.Helper()

	if err := store.Seed(context.Background(), s, model.DefaultPersons()); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
}

// healthResponse represents the health endpoint response.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// readyResponse represents the ready endpoint response.
type readyResponse struct {
	Status string `json:"status"`
}

// doRequest is a convenience wrapper that performs an HTTP request and
// returns the status code and body bytes.
func doRequest(
	t *testing.T,
	client *http.Client,
	method, url string,
	body io.Reader,
	headers map[string]string,
) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	return resp.StatusCode, respBody
}
