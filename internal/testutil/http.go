package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// HTTPResult captures HTTP response details for test assertions
type HTTPResult struct {
	Code    int
	Error   error
	Headers http.Header
	Body    []byte
}

// Cookie returns the named Set-Cookie from the response, or nil.
func (r HTTPResult) Cookie(name string) *http.Cookie {
	for _, c := range (&http.Response{Header: r.Headers}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Header represents an HTTP header key-value pair
type Header struct {
	Key   string
	Value string
}

// ContentTypeJSON returns a header for JSON content type
func ContentTypeJSON() Header {
	return Header{
		Key:   "Content-Type",
		Value: "application/json",
	}
}

// Bearer returns an Authorization header carrying token
func Bearer(token string) Header {
	return Header{
		Key:   "Authorization",
		Value: "Bearer " + token,
	}
}

// WithCookie returns a Cookie header carrying c
func WithCookie(c *http.Cookie) Header {
	return Header{
		Key:   "Cookie",
		Value: c.Name + "=" + c.Value,
	}
}

// ExpectStatus validates the HTTP status code and fails the test if it doesn't match
func ExpectStatus(
	t *testing.T,
	expected int,
	result HTTPResult,
) {
	t.Helper()
	if result.Error != nil {
		t.Fatalf("request error: %v", result.Error)
	}
	if result.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, result.Code, string(result.Body))
	}
}

// ExpectRedirect validates a redirect response and returns the Location header
func ExpectRedirect(
	t *testing.T,
	result HTTPResult,
) string {
	t.Helper()
	if result.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect (303), got %d. Body: %s", result.Code, string(result.Body))
	}
	location := result.Headers.Get("Location")
	if location == "" {
		t.Fatal("expected Location header in redirect")
	}
	return location
}

// ExpectCode validates the machine-readable code of a JSON error body
func ExpectCode(
	t *testing.T,
	expected string,
	result HTTPResult,
) {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(result.Body, &body); err != nil {
		t.Fatalf("failed to decode error body: %v\n%s", err, string(result.Body))
	}
	if body.Success {
		t.Errorf("expected success=false in error body")
	}
	if body.Code != expected {
		t.Fatalf("expected code %s, got %s. Body: %s", expected, body.Code, string(result.Body))
	}
}

// Do performs a request and optionally decodes the JSON response
func Do(
	router http.Handler,
	method string,
	url string,
	body io.Reader,
	response any,
	headers ...Header,
) HTTPResult {
	req := httptest.NewRequest(method, url, body)
	res := httptest.NewRecorder()
	for _, h := range headers {
		req.Header.Add(h.Key, h.Value)
	}
	router.ServeHTTP(res, req)

	if response != nil && res.Body.Len() > 0 {
		if err := json.Unmarshal(res.Body.Bytes(), response); err != nil {
			return HTTPResult{
				Code:    res.Code,
				Error:   fmt.Errorf("failed to decode JSON: %v\n%s", err, res.Body.String()),
				Headers: res.Header(),
				Body:    res.Body.Bytes(),
			}
		}
	}

	return HTTPResult{Code: res.Code, Headers: res.Header(), Body: res.Body.Bytes()}
}

// Get performs a GET request and optionally decodes JSON response
func Get(
	router http.Handler,
	url string,
	response any,
	headers ...Header,
) HTTPResult {
	return Do(router, http.MethodGet, url, nil, response, headers...)
}

// Delete performs a DELETE request and optionally decodes JSON response
func Delete(
	router http.Handler,
	url string,
	response any,
	headers ...Header,
) HTTPResult {
	return Do(router, http.MethodDelete, url, nil, response, headers...)
}

// Post performs a POST request and optionally decodes JSON response
func Post(
	router http.Handler,
	url string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	return Do(router, http.MethodPost, url, strings.NewReader(body), response, headers...)
}

// PostJSON performs a POST with JSON body
func PostJSON(
	router http.Handler,
	urlPath string,
	body string,
	response any,
	headers ...Header,
) HTTPResult {
	return Post(router, urlPath, body, response, append([]Header{ContentTypeJSON()}, headers...)...)
}
