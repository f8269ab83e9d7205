// Package pheno provides access to the PhenoML medical-coding API: a
// basic-auth token exchange followed by bearer-authenticated construe/extract
// calls mapping natural-language descriptions to standardized codes.
package pheno

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://phenoml-hackathon.app.pheno.ml"

	// Coding system the extractor is pinned to.
	DefaultSystemName    = "SNOMED_CT_US_LITE"
	DefaultSystemVersion = "20240901"

	// Extraction config: each description is one atomic unit (no chunking),
	// with a bounded number of codes per call.
	defaultMaxCodesPerChunk     = 20
	defaultCodeSimilarityFilter = 0.9
)

// Client defines the medical-coding operations used by the pipeline.
type Client interface {
	// ExtractCodes maps one natural-language description to zero or more
	// standardized codes. Authenticates lazily on first use; the bearer token
	// is cached for the lifetime of the client.
	ExtractCodes(ctx context.Context, text string) ([]ExtractedCode, error)
}

// ExtractedCode is one code returned by construe/extract.
type ExtractedCode struct {
	Code            string `json:"code"`
	Description     string `json:"description"`
	LongDescription string `json:"longDescription,omitempty"`
	Rationale       string `json:"rationale,omitempty"`
}

// AuthError marks a failed token exchange. Callers treat it as fatal for the
// whole extraction stage, unlike per-call extraction errors.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "pheno: authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// APIError is a non-2xx response from the extract endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pheno: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSystem overrides the coding system name and version.
func WithSystem(name, version string) Option {
	return func(c *httpClient) {
		c.systemName = name
		c.systemVersion = version
	}
}

// WithRateLimit sets a per-second rate limit for extract calls. The coding
// collaborator is shared and rate-limited upstream.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	username      string
	password      string
	baseURL       string
	systemName    string
	systemVersion string
	http          *http.Client
	limiter       *rate.Limiter

	mu    sync.Mutex
	token string
}

// NewClient creates a PhenoML API client. No network call is made until the
// first ExtractCodes.
func NewClient(username, password string, opts ...Option) Client {
	c := &httpClient{
		username:      username,
		password:      password,
		baseURL:       defaultBaseURL,
		systemName:    DefaultSystemName,
		systemVersion: DefaultSystemVersion,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// tokenResponse is the body of POST /auth/token.
type tokenResponse struct {
	Token string `json:"token"`
}

// extractRequest is the body of POST /construe/extract.
type extractRequest struct {
	Text   string        `json:"text"`
	System systemRef     `json:"system"`
	Config extractConfig `json:"config"`
}

type systemRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type extractConfig struct {
	ChunkingMethod       string  `json:"chunking_method"`
	MaxCodesPerChunk     int     `json:"max_codes_per_chunk"`
	CodeSimilarityFilter float64 `json:"code_similarity_filter"`
	IncludeRationale     bool    `json:"include_rationale"`
}

// extractResponse is the body of a successful extract call. Codes is a
// pointer so a response missing the field entirely is distinguishable from an
// empty list.
type extractResponse struct {
	Codes *[]ExtractedCode `json:"codes"`
}

// ensureToken performs the basic-auth token exchange once and caches the
// bearer token for subsequent calls.
func (c *httpClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", nil)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Err: eris.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Err: eris.Wrap(err, "unmarshal token response")}
	}
	if tr.Token == "" {
		return "", &AuthError{Err: eris.New("token endpoint returned no token")}
	}

	c.token = tr.Token
	return c.token, nil
}

func (c *httpClient) ExtractCodes(ctx context.Context, text string) ([]ExtractedCode, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pheno: rate limit")
		}
	}

	body, err := json.Marshal(extractRequest{
		Text:   text,
		System: systemRef{Name: c.systemName, Version: c.systemVersion},
		Config: extractConfig{
			ChunkingMethod:       "none",
			MaxCodesPerChunk:     defaultMaxCodesPerChunk,
			CodeSimilarityFilter: defaultCodeSimilarityFilter,
			IncludeRationale:     true,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pheno: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/construe/extract", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "pheno: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "pheno: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pheno: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result extractResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "pheno: unmarshal response")
	}
	if result.Codes == nil {
		return nil, eris.New("pheno: no codes field in response")
	}

	return *result.Codes, nil
}
