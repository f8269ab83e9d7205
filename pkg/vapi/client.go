// Package vapi is a thin wrapper around the Vapi voice-calling HTTP API,
// used to place outbound negotiation calls. The pipeline itself never touches
// this; only the negotiate command does.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.vapi.ai"

// Client performs call operations against the Vapi API.
type Client interface {
	CreateCall(ctx context.Context, req CallRequest) (*Call, error)
	GetCall(ctx context.Context, callID string) (*Call, error)
}

// Customer identifies the person the assistant will call.
type Customer struct {
	Name   string `json:"name,omitempty"`
	Number string `json:"number"`
}

// CallRequest is the body of POST /call for an outbound phone call.
type CallRequest struct {
	AssistantID   string         `json:"assistantId"`
	PhoneNumberID string         `json:"phoneNumberId"`
	Customer      Customer       `json:"customer"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Call is Vapi's representation of a call session.
type Call struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Vapi API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CreateCall(ctx context.Context, req CallRequest) (*Call, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: marshal request")
	}

	var call Call
	if err := c.do(ctx, http.MethodPost, "/call", bytes.NewReader(body), &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *httpClient) GetCall(ctx context.Context, callID string) (*Call, error) {
	var call Call
	if err := c.do(ctx, http.MethodGet, "/call/"+callID, nil, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "vapi: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "vapi: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "vapi: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("vapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "vapi: unmarshal response")
	}
	return nil
}
