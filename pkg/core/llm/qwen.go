package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	qwenEmbeddingURL          = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
	DefaultQwenEmbeddingModel = "text-embedding-v3"
)

// QwenEmbedder implements Embedder with the native DashScope text-embedding API.
type QwenEmbedder struct {
	Model      string
	APIKey     string // falls back to DASHSCOPE_API_KEY, then QWEN_API_KEY
	Endpoint   string
	HTTPClient *http.Client
}

var _ Embedder = (*QwenEmbedder)(nil)

func (p *QwenEmbedder) apiKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("QWEN_API_KEY")
}

func (p *QwenEmbedder) Space() string {
	model := p.Model
	if model == "" {
		model = DefaultQwenEmbeddingModel
	}
	return "qwen/" + model
}

func (p *QwenEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, embedErr("qwen", errors.New("empty text"))
	}
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, embedErr("qwen", errors.New("QWEN_API_KEY_MISSING: set DASHSCOPE_API_KEY or QWEN_API_KEY"))
	}

	model := p.Model
	if model == "" {
		model = DefaultQwenEmbeddingModel
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = qwenEmbeddingURL
	}

	reqBody := map[string]interface{}{
		"model": model,
		"input": map[string]interface{}{
			"texts": []string{text},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, embedErr("qwen", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, embedErr("qwen", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, embedErr("qwen", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, embedErr("qwen", fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	// {"output": {"embeddings": [{"text_index": 0, "embedding": [...]}]}}
	var result struct {
		Output struct {
			Embeddings []struct {
				TextIndex int       `json:"text_index"`
				Embedding []float64 `json:"embedding"`
			} `json:"embeddings"`
		} `json:"output"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, embedErr("qwen", fmt.Errorf("failed to decode response: %w", err))
	}
	if result.Code != "" {
		return nil, embedErr("qwen", fmt.Errorf("%s - %s", result.Code, result.Message))
	}
	if len(result.Output.Embeddings) == 0 || len(result.Output.Embeddings[0].Embedding) == 0 {
		return nil, embedErr("qwen", errors.New("empty embedding in response"))
	}
	return result.Output.Embeddings[0].Embedding, nil
}
