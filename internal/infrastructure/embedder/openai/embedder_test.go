package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/infrastructure/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbedderConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			cfg: config.EmbedderConfig{
				APIKey: "test-key",
			},
			wantErr: false,
		},
		{
			name: "valid config with model",
			cfg: config.EmbedderConfig{
				APIKey: "test-key",
				Model:  "text-embedding-ada-002",
			},
			wantErr: false,
		},
		{
			name: "local endpoint without key",
			cfg: config.EmbedderConfig{
				BaseURL: "http://127.0.0.1:11434/v1",
				Model:   "nomic-embed-text",
			},
			wantErr: false,
		},
		{
			name:    "missing API key",
			cfg:     config.EmbedderConfig{},
			wantErr: true,
			errMsg:  "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder, err := NewEmbedder(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, embedder)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, embedder)
			}
		})
	}
}

func TestVectorSize(t *testing.T) {
	// Verify the constant matches OpenAI's text-embedding-3-small dimension
	assert.Equal(t, 1536, VectorSize)
}

func embeddingServer(t *testing.T, data []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-embed",
			"data":   data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	srv := embeddingServer(t, []map[string]any{
		{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
		{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
	})

	e, err := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL + "/v1/", Model: "test-embed"})
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), []string{"pump", "pipe"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	empty, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbedder_EmbedBatchMismatch(t *testing.T) {
	srv := embeddingServer(t, []map[string]any{
		{"object": "embedding", "index": 0, "embedding": []float32{1}},
	})

	e, err := NewEmbedder(config.EmbedderConfig{BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")

	v, err := e.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}
