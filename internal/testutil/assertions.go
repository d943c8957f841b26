package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

// ResponseAssertion chains checks against one API response
type ResponseAssertion struct {
	t    *testing.T
	resp *http.Response
	body []byte
	read bool
}

// AssertResponse wraps resp for chained assertions
func AssertResponse(t *testing.T, resp *http.Response) *ResponseAssertion {
	t.Helper()
	return &ResponseAssertion{t: t, resp: resp}
}

func (ra *ResponseAssertion) bytes() []byte {
	if ra.read {
		return ra.body
	}
	defer ra.resp.Body.Close()

	body, err := io.ReadAll(ra.resp.Body)
	if err != nil {
		ra.t.Fatalf("Failed to read response body: %v", err)
	}
	ra.body = body
	ra.read = true
	return body
}

// Status asserts the status code
func (ra *ResponseAssertion) Status(code int) *ResponseAssertion {
	ra.t.Helper()
	if ra.resp.StatusCode != code {
		ra.t.Errorf("%s %s: status %d, want %d\nbody: %s",
			ra.resp.Request.Method, ra.resp.Request.URL.Path, ra.resp.StatusCode, code, excerpt(ra.bytes()))
	}
	return ra
}

func (ra *ResponseAssertion) StatusOK() *ResponseAssertion {
	ra.t.Helper()
	return ra.Status(http.StatusOK)
}

// ContentTypeJSON asserts the handler wrote a JSON body
func (ra *ResponseAssertion) ContentTypeJSON() *ResponseAssertion {
	ra.t.Helper()
	if ct := ra.resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		ra.t.Errorf("Content-Type = %q, want application/json", ct)
	}
	return ra
}

// Contains asserts the raw body contains substr
func (ra *ResponseAssertion) Contains(substr string) *ResponseAssertion {
	ra.t.Helper()
	return ra.ContainsAll(substr)
}

// ContainsAll asserts the raw body contains every substring
func (ra *ResponseAssertion) ContainsAll(substrs ...string) *ResponseAssertion {
	ra.t.Helper()
	body := string(ra.bytes())
	for _, s := range substrs {
		if !strings.Contains(body, s) {
			ra.t.Errorf("body does not contain %q\nbody: %s", s, excerpt(ra.bytes()))
		}
	}
	return ra
}

// JSON decodes the body into v, failing the test on malformed JSON
func (ra *ResponseAssertion) JSON(v any) *ResponseAssertion {
	ra.t.Helper()
	if err := json.Unmarshal(ra.bytes(), v); err != nil {
		ra.t.Fatalf("decoding JSON body: %v\nbody: %s", err, excerpt(ra.bytes()))
	}
	return ra
}

// ErrorMessage asserts an {"error": ...} body whose message contains substr
func (ra *ResponseAssertion) ErrorMessage(substr string) *ResponseAssertion {
	ra.t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	ra.JSON(&payload)
	if payload.Error == "" {
		ra.t.Errorf("body carries no error message: %s", excerpt(ra.bytes()))
	} else if !strings.Contains(payload.Error, substr) {
		ra.t.Errorf("error = %q, want it to contain %q", payload.Error, substr)
	}
	return ra
}

// Body returns the raw body
func (ra *ResponseAssertion) Body() string {
	return string(ra.bytes())
}

func excerpt(b []byte) string {
	const limit = 500
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
