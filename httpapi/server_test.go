package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/vibebox/coordinator"
	"github.com/isdmx/vibebox/sandbox"
)

// MockService implements coordinator.Service for testing
type MockService struct {
	preview     coordinator.SandboxPreview
	codePreview coordinator.CodePreview
	result      sandbox.ExecutionResult
	err         error

	callerID  string
	listingID string
	fileID    string
	request   coordinator.ExecuteRequest
}

func (m *MockService) SupportedLanguages() []string {
	return []string{"javascript", "python"}
}

func (m *MockService) Preview(_ context.Context, callerID, listingID string) (coordinator.SandboxPreview, error) {
	m.callerID, m.listingID = callerID, listingID
	return m.preview, m.err
}

func (m *MockService) CodePreview(_ context.Context, callerID, listingID, fileID string) (coordinator.CodePreview, error) {
	m.callerID, m.listingID, m.fileID = callerID, listingID, fileID
	return m.codePreview, m.err
}

func (m *MockService) Execute(_ context.Context, callerID string, req coordinator.ExecuteRequest) (sandbox.ExecutionResult, error) {
	m.callerID, m.request = callerID, req
	return m.result, m.err
}

func doRequest(t *testing.T, s *Server, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLanguages(t *testing.T) {
	s := New(zaptest.NewLogger(t), &MockService{})

	rec := doRequest(t, s, http.MethodGet, "/languages", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"languages":["javascript","python"]}`, rec.Body.String())
}

func TestListingRoutesRequireCaller(t *testing.T) {
	s := New(zaptest.NewLogger(t), &MockService{})

	routes := []struct{ method, path string }{
		{http.MethodGet, "/listings/l1/preview"},
		{http.MethodGet, "/listings/l1/files/f1"},
		{http.MethodPost, "/listings/l1/execute"},
	}
	for _, route := range routes {
		t.Run(route.path, func(t *testing.T) {
			rec := doRequest(t, s, route.method, route.path, "", "{}")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), CallerHeader)
		})
	}
}

func TestPreview(t *testing.T) {
	service := &MockService{preview: coordinator.SandboxPreview{
		ListingID:  "l1",
		Files:      []coordinator.PreviewFile{{ID: "f1", Filename: "main.js", Language: "javascript", IsMain: true}},
		CanExecute: true,
	}}
	s := New(zaptest.NewLogger(t), service)

	rec := doRequest(t, s, http.MethodGet, "/listings/l1/preview", "alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"listingId":"l1","files":[{"id":"f1","filename":"main.js","language":"javascript","isMain":true}],"canExecute":true,"supportedLanguage":false}`,
		rec.Body.String())
	assert.Equal(t, "alice", service.callerID)
	assert.Equal(t, "l1", service.listingID)
}

func TestCodePreview(t *testing.T) {
	service := &MockService{codePreview: coordinator.CodePreview{Filename: "main.js", Language: "javascript", Content: "1"}}
	s := New(zaptest.NewLogger(t), service)

	rec := doRequest(t, s, http.MethodGet, "/listings/l1/files/f9", "bob", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"filename":"main.js","language":"javascript","content":"1"}`, rec.Body.String())
	assert.Equal(t, "f9", service.fileID)
}

func TestExecute(t *testing.T) {
	service := &MockService{result: sandbox.ExecutionResult{
		Success:         false,
		Error:           "Execution timed out after 500ms",
		ExitCode:        124,
		ExecutionTimeMs: 503,
	}}
	s := New(zaptest.NewLogger(t), service)

	rec := doRequest(t, s, http.MethodPost, "/listings/l1/execute", "alice",
		`{"fileId":"f1","input":"42","timeoutMs":500}`)
	assert.Equal(t, http.StatusOK, rec.Code, "failed runs are still 200")
	assert.JSONEq(t,
		`{"success":false,"output":"","error":"Execution timed out after 500ms","executionTime":503,"exitCode":124}`,
		rec.Body.String())
	assert.Equal(t, coordinator.ExecuteRequest{ListingID: "l1", FileID: "f1", Input: "42", TimeoutMs: 500}, service.request)

	t.Run("EmptyBody", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/listings/l2/execute", "alice", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, coordinator.ExecuteRequest{ListingID: "l2"}, service.request)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/listings/l1/execute", "alice", `{"fileId":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownField", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/listings/l1/execute", "alice", `{"code":"rm -rf /"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		big := fmt.Sprintf(`{"input":%q}`, strings.Repeat("x", maxBodyBytes+1))
		rec := doRequest(t, s, http.MethodPost, "/listings/l1/execute", "alice", big)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"NotFound", fmt.Errorf("x: %w", coordinator.ErrNotFound), http.StatusNotFound},
		{"Forbidden", fmt.Errorf("x: %w", coordinator.ErrForbidden), http.StatusForbidden},
		{"BlobFailure", fmt.Errorf("x: %w", coordinator.ErrContentUnavailable), http.StatusBadGateway},
		{"Internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(zaptest.NewLogger(t), &MockService{err: tt.err})

			for _, route := range []struct{ method, path string }{
				{http.MethodGet, "/listings/l1/preview"},
				{http.MethodGet, "/listings/l1/files/f1"},
				{http.MethodPost, "/listings/l1/execute"},
			} {
				rec := doRequest(t, s, route.method, route.path, "alice", "{}")
				assert.Equal(t, tt.status, rec.Code, route.path)

				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.err.Error(), body["error"])
			}
		})
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := New(zaptest.NewLogger(t), &MockService{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/languages"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test request
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Shutdown(context.Background()))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
