// Package testutil provides HTTP testing helpers for the cashflow API.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// TestServer wraps httptest.Server with convenience methods
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	t       *testing.T
}

// TestEnv returns CASHFLOW_* variables pointing the application at dataDir
func TestEnv(dataDir string) map[string]string {
	return map[string]string{
		"CASHFLOW_DATA_DIR":    dataDir,
		"CASHFLOW_DEBUG":       "true",
		"CASHFLOW_LISTEN_ADDR": "127.0.0.1:0",
		"CASHFLOW_LOG_OUTPUT":  "stderr",
	}
}

// SetTestEnv sets the test environment for the duration of t
func SetTestEnv(t *testing.T, dataDir string) {
	t.Helper()
	for k, v := range TestEnv(dataDir) {
		t.Setenv(k, v)
	}
}

// NewTestServer starts router on a local port and closes it when t finishes
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		t:       t,
	}
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodGet, path, nil)
}

// GETWithQuery performs a GET request with query parameters
func (ts *TestServer) GETWithQuery(path string, query map[string]string) *http.Response {
	ts.t.Helper()

	values := url.Values{}
	for k, v := range query {
		values.Set(k, v)
	}
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	return ts.Do(http.MethodGet, path, nil)
}

// POSTJSON sends v encoded as JSON
func (ts *TestServer) POSTJSON(path string, v any) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodPost, path, ts.encode(v))
}

// PATCHJSON sends v encoded as JSON
func (ts *TestServer) PATCHJSON(path string, v any) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodPatch, path, ts.encode(v))
}

// DELETE performs a DELETE request to the given path
func (ts *TestServer) DELETE(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodDelete, path, nil)
}

// Do performs a request with an optional JSON body
func (ts *TestServer) Do(method, path string, body io.Reader) *http.Response {
	ts.t.Helper()

	req, err := http.NewRequest(method, ts.BaseURL+path, body)
	if err != nil {
		ts.t.Fatalf("building %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func (ts *TestServer) encode(v any) io.Reader {
	ts.t.Helper()
	if s, ok := v.(string); ok {
		return bytes.NewBufferString(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		ts.t.Fatalf("encoding request body: %v", err)
	}
	return bytes.NewReader(data)
}

// ReadBody reads and returns the response body as a string
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return string(body)
}
