//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// Environment variable names for E2E test configuration.
const (
	EnvServerURL = "E2E_SERVER_URL"
	EnvProbeURL  = "E2E_PROBE_URL"
)

// Default configuration values.
const (
	DefaultServerURL = "http://localhost:3001"
	DefaultProbeURL  = "http://localhost:9090"
	DefaultTimeout   = 15 * time.Second
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// e2eServerURL returns the base URL of the server under test.
func e2eServerURL() string {
	return getEnvOrDefault(EnvServerURL, DefaultServerURL)
}

// e2eProbeURL returns the base URL of the probe listener under test.
func e2eProbeURL() string {
	return getEnvOrDefault(EnvProbeURL, DefaultProbeURL)
}

// skipIfServerUnavailable checks whether the server is reachable
// and skips the test if it is not.
func skipIfServerUnavailable(t *testing.T) {
	t.Helper()

	base := e2eServerURL()
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(base + "/info")
	if err != nil {
		t.Skipf("Server unavailable at %s: %v", base, err)
	}
	resp.Body.Close()
}

// newHTTPClient returns an *http.Client with a sensible timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// person mirrors a phonebook entry returned by the API.
type person struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// errorResponse represents an error response from the API.
type errorResponse struct {
	Error string `json:"error"`
}

// doRequest performs an HTTP request and returns status code and body.
func doRequest(
	t *testing.T,
	client *http.Client,
	method, url string,
	body io.Reader,
) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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

// uniqueName returns a name that will not collide with other runs.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s %d", prefix, time.Now().UnixNano())
}

// createPerson creates a person and returns it. It fails the test on error.
func createPerson(t *testing.T, client *http.Client, base, name, number string) person {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"name": name, "number": number})
	status, body := doRequest(t, client, http.MethodPost, base+"/api/persons", bytes.NewReader(payload))
	if status != http.StatusOK {
		t.Fatalf("createPerson: expected 200, got %d. Body: %s", status, body)
	}

	var created person
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("createPerson: failed to parse person: %v", err)
	}

	return created
}

// deletePerson deletes a person by ID.
func deletePerson(t *testing.T, client *http.Client, base string, id int) {
	t.Helper()

	status, body := doRequest(t, client, http.MethodDelete, fmt.Sprintf("%s/api/persons/%d", base, id), nil)
	if status != http.StatusNoContent {
		t.Logf("deletePerson cleanup: expected 204, got %d. Body: %s", status, body)
	}
}
