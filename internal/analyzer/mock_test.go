package analyzer

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clearbill/billscan/internal/config"
	"github.com/clearbill/billscan/internal/refdata"
	"github.com/clearbill/billscan/pkg/anthropic"
	"github.com/clearbill/billscan/pkg/pheno"
)

// --- Inference Mock ---

type mockInferenceClient struct {
	mock.Mock
}

func (m *mockInferenceClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Coding Mock ---

type mockCoderClient struct {
	mock.Mock
}

func (m *mockCoderClient) ExtractCodes(ctx context.Context, text string) ([]pheno.ExtractedCode, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pheno.ExtractedCode), args.Error(1)
}

// --- Helpers ---

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			Model:       "claude-haiku-4-5-20251001",
			MaxTokens:   4000,
			TimeoutSecs: 5,
		},
		Pheno: config.PhenoConfig{
			MaxAttempts: 1,
			TimeoutSecs: 5,
		},
	}
}

// testStore writes a mappings file (and optionally a fallback corpus) into a
// temp dir and loads a Store over them.
func testStore(t *testing.T, fallbackJSON string) *refdata.Store {
	t.Helper()
	dir := t.TempDir()

	mappings := filepath.Join(dir, "mappings.txt")
	require.NoError(t, os.WriteFile(mappings, []byte("99213 | Office visit | 180 | 220 | 260\n"), 0o644))

	fallback := filepath.Join(dir, "fallback-data.json")
	if fallbackJSON != "" {
		require.NoError(t, os.WriteFile(fallback, []byte(fallbackJSON), 0o644))
	}

	store, err := refdata.Load(mappings, fallback)
	require.NoError(t, err)
	return store
}

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func newTestPipeline(t *testing.T, ai anthropic.Client, coder pheno.Client, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithRand(seededRand(1))}, opts...)
	return New(testConfig(), ai, coder, testStore(t, ""), opts...)
}
