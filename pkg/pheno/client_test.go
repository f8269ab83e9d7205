package pheno

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer stands up a fake PhenoML API with a token endpoint and an
// extract endpoint returning extractBody with extractStatus.
func newTestServer(t *testing.T, authStatus, extractStatus int, extractBody string, authCalls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			if authCalls != nil {
				authCalls.Add(1)
			}
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
			w.WriteHeader(authStatus)
			if authStatus == http.StatusOK {
				_, _ = w.Write([]byte(`{"token": "test-bearer-token"}`))
			} else {
				_, _ = w.Write([]byte(`{"error": "bad credentials"}`))
			}
		case "/construe/extract":
			assert.Equal(t, "Bearer test-bearer-token", r.Header.Get("Authorization"))

			var req extractRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "none", req.Config.ChunkingMethod)
			assert.Equal(t, 20, req.Config.MaxCodesPerChunk)
			assert.InDelta(t, 0.9, req.Config.CodeSimilarityFilter, 0.001)
			assert.True(t, req.Config.IncludeRationale)
			assert.Equal(t, DefaultSystemName, req.System.Name)
			assert.Equal(t, DefaultSystemVersion, req.System.Version)

			w.WriteHeader(extractStatus)
			_, _ = w.Write([]byte(extractBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestExtractCodes(t *testing.T) {
	body := `{"codes": [
		{"code": "185345009", "description": "Encounter for symptom", "rationale": "office visit"},
		{"code": "408443003", "description": "General medical practice"}
	]}`
	srv := newTestServer(t, http.StatusOK, http.StatusOK, body, nil)
	defer srv.Close()

	client := NewClient("user", "pass", WithBaseURL(srv.URL))
	codes, err := client.ExtractCodes(context.Background(), "The patient had an office visit.")
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "185345009", codes[0].Code)
	assert.Equal(t, "office visit", codes[0].Rationale)
}

func TestExtractCodes_TokenCachedAcrossCalls(t *testing.T) {
	var authCalls atomic.Int64
	srv := newTestServer(t, http.StatusOK, http.StatusOK, `{"codes": []}`, &authCalls)
	defer srv.Close()

	client := NewClient("user", "pass", WithBaseURL(srv.URL))
	for range 3 {
		_, err := client.ExtractCodes(context.Background(), "text")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), authCalls.Load())
}

func TestExtractCodes_AuthFailure(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, http.StatusOK, "", nil)
	defer srv.Close()

	client := NewClient("user", "wrong", WithBaseURL(srv.URL))
	_, err := client.ExtractCodes(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestExtractCodes_MissingCodesField(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, http.StatusOK, `{"something_else": true}`, nil)
	defer srv.Close()

	client := NewClient("user", "pass", WithBaseURL(srv.URL))
	_, err := client.ExtractCodes(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no codes field")
	assert.False(t, IsAuthError(err))
}

func TestExtractCodes_EmptyCodesIsNotAnError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, http.StatusOK, `{"codes": []}`, nil)
	defer srv.Close()

	client := NewClient("user", "pass", WithBaseURL(srv.URL))
	codes, err := client.ExtractCodes(context.Background(), "text")
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestExtractCodes_ServerErrorIsAPIError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, http.StatusServiceUnavailable, `{"error":"overloaded"}`, nil)
	defer srv.Close()

	client := NewClient("user", "pass", WithBaseURL(srv.URL))
	_, err := client.ExtractCodes(context.Background(), "text")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.False(t, IsAuthError(err))
}
