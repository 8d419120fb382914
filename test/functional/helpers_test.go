//go:build functional

// Package functional provides functional tests for the phonebook API and event feed.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/phonebook-api/internal/config"
	"github.com/vyrodovalexey/phonebook-api/internal/model"
	"github.com/vyrodovalexey/phonebook-api/internal/server"
	"github.com/vyrodovalexey/phonebook-api/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost    = "TEST_SERVER_HOST"
	EnvTestTimeout       = "TEST_TIMEOUT"
	EnvTestMetricsEnable = "TEST_METRICS_ENABLED"
)

// Default test configuration values.
const (
	DefaultTestHost         = "localhost"
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultMetricsEnabled   = false
)

// TestConfig holds test configuration loaded from environment.
type TestConfig struct {
	Host           string
	Timeout        time.Duration
	MetricsEnabled bool
}

// LoadTestConfig loads test configuration from environment variables.
func LoadTestConfig() *TestConfig {
	cfg := &TestConfig{
		Host:           DefaultTestHost,
		Timeout:        DefaultTestTimeout,
		MetricsEnabled: DefaultMetricsEnabled,
	}

	if host := os.Getenv(EnvTestServerHost); host != "" {
		cfg.Host = host
	}

	if timeoutStr := os.Getenv(EnvTestTimeout); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	if metricsStr := os.Getenv(EnvTestMetricsEnable); metricsStr != "" {
		if enabled, err := strconv.ParseBool(metricsStr); err == nil {
			cfg.MetricsEnabled = enabled
		}
	}

	return cfg
}

// TestServer wraps the server for testing purposes.
type TestServer struct {
	Server   *server.Server
	Store    store.Store
	BaseURL  string
	ProbeURL string
	WSURL    string
	timeout  time.Duration
	t        *testing.T
	mu       sync.Mutex
	started  bool
}

// ServerOption adjusts the configuration of a TestServer.
type ServerOption func(*config.Config)

// WithoutSeed starts the server with an empty phonebook.
func WithoutSeed() ServerOption {
	return func(c *config.Config) {
		c.SeedEnabled = false
	}
}

// WithSQLite backs the server with an in-memory SQLite database.
func WithSQLite() ServerOption {
	return func(c *config.Config) {
		c.StoreBackend = config.StoreBackendSQLite
	}
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T, host string) int {
	t.Helper()

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// NewTestServer creates a new test server instance.
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()

	testCfg := LoadTestConfig()
	port := freePort(t, testCfg.Host)
	probePort := freePort(t, testCfg.Host)

	cfg := &config.Config{
		ServerPort:      port,
		ProbePort:       probePort,
		LogLevel:        "error",
		LogFormat:       config.DefaultLogFormat,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  testCfg.MetricsEnabled,
		MaxBodyBytes:    config.DefaultMaxBodyBytes,
		StoreBackend:    config.StoreBackendMemory,
		SQLiteDSN:       config.DefaultSQLiteDSN,
		SeedEnabled:     true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	personStore := newStore(t, cfg)

	// Nop logger keeps test output readable.
	srv := server.New(cfg, zap.NewNop(), personStore)

	return &TestServer{
		Server:   srv,
		Store:    personStore,
		BaseURL:  fmt.Sprintf("http://%s:%d", testCfg.Host, port),
		ProbeURL: fmt.Sprintf("http://%s:%d", testCfg.Host, probePort),
		WSURL:    fmt.Sprintf("ws://%s:%d", testCfg.Host, port),
		timeout:  testCfg.Timeout,
		t:        t,
	}
}

func newStore(t *testing.T, cfg *config.Config) store.Store {
	t.Helper()

	ctx := context.Background()

	var backend interface {
		store.Store
		store.Seeder
	}
	switch cfg.StoreBackend {
	case config.StoreBackendSQLite:
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLiteDSN)
		if err != nil {
			t.Fatalf("Failed to open sqlite store: %v", err)
		}
		t.Cleanup(func() { _ = sqliteStore.Close() })
		backend = sqliteStore
	default:
		backend = store.NewMemoryStore()
	}

	if cfg.SeedEnabled {
		if err := store.Seed(ctx, backend, model.DefaultPersons()); err != nil {
			t.Fatalf("Failed to seed store: %v", err)
		}
	}

	return backend
}

// Start starts the test server.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	go func() {
		if err := ts.Server.Start(); err != nil {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.waitForReady()
	ts.started = true
}

// waitForReady polls the readiness probe until the server answers.
func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.ProbeURL + "/ready")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop stops the test server.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}

	ts.started = false
}

// HTTPClient provides a configured HTTP client for tests.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	t       *testing.T
}

// NewHTTPClient creates a new HTTP client for testing.
func NewHTTPClient(t *testing.T, baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
		baseURL: baseURL,
		t:       t,
	}
}

// Request represents an HTTP request configuration.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes an HTTP request and returns the response.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		switch v := req.Body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(v)
		case []byte:
			bodyReader = bytes.NewBuffer(v)
		default:
			jsonBody, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post performs a POST request.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// ParsePerson parses a single person from a response body.
func ParsePerson(body []byte) (*model.Person, error) {
	var p model.Person
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse person: %w", err)
	}
	return &p, nil
}

// ParsePersons parses a person list from a response body.
func ParsePersons(body []byte) ([]model.Person, error) {
	var persons []model.Person
	if err := json.Unmarshal(body, &persons); err != nil {
		return nil, fmt.Errorf("failed to parse persons: %w", err)
	}
	return persons, nil
}

// ParseError parses an {"error": ...} body.
func ParseError(body []byte) (string, error) {
	var resp model.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse error response: %w", err)
	}
	return resp.Error, nil
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertHeader asserts that the response has the expected header value.
func AssertHeader(t *testing.T, resp *Response, key, expected string) {
	t.Helper()
	actual := resp.Headers.Get(key)
	if actual != expected {
		t.Errorf("Expected header %s to be %q, got %q", key, expected, actual)
	}
}

// AssertErrorMessage asserts that the response carries the expected error message.
func AssertErrorMessage(t *testing.T, resp *Response, expected string) {
	t.Helper()
	msg, err := ParseError(resp.Body)
	if err != nil {
		t.Fatalf("Failed to parse error: %v. Body: %s", err, string(resp.Body))
	}
	if msg != expected {
		t.Errorf("Expected error %q, got %q", expected, msg)
	}
}

// LogTestStart logs the start of a test.
func LogTestStart(t *testing.T, testID, testName string) {
	t.Helper()
	t.Logf("Starting test %s: %s", testID, testName)
}

// LogTestEnd logs the end of a test.
func LogTestEnd(t *testing.T, testID string) {
	t.Helper()
	t.Logf("Completed test %s", testID)
}
