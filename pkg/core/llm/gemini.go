package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiEmbeddingModel is used when GeminiEmbedder.Model is empty.
const DefaultGeminiEmbeddingModel = "gemini-embedding-001"

// GeminiEmbedder implements Embedder with Google's Gemini embedding models.
type GeminiEmbedder struct {
	Model      string // e.g. "gemini-embedding-001"
	APIKey     string // falls back to GEMINI_API_KEY
	Dimensions int32  // optional output dimensionality

	once    sync.Once
	client  *genai.Client
	initErr error
}

// Ensure interface compliance
var _ Embedder = (*GeminiEmbedder)(nil)

func (p *GeminiEmbedder) init(ctx context.Context) error {
	p.once.Do(func() {
		apiKey := p.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			p.initErr = errors.New("GEMINI_API_KEY environment variable not set")
			return
		}
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if p.initErr != nil {
			p.initErr = fmt.Errorf("failed to create GenAI client: %w", p.initErr)
		}
	})
	return p.initErr
}

// Embed sends an embedContent request using the official GenAI SDK.
// Space names the vector space by model and output dimensionality.
func (p *GeminiEmbedder) Space() string {
	model := p.Model
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return fmt.Sprintf("gemini/%s/%d", model, p.Dimensions)
}

func (p *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, embedErr("gemini", errors.New("empty text"))
	}
	if err := p.init(ctx); err != nil {
		return nil, embedErr("gemini", err)
	}

	model := p.Model
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}

	config := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if p.Dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(p.Dimensions)
	}

	result, err := p.client.Models.EmbedContent(ctx, model, genai.Text(text), config)
	if err != nil {
		return nil, embedErr("gemini", err)
	}
	if len(result.Embeddings) == 0 || result.Embeddings[0] == nil || len(result.Embeddings[0].Values) == 0 {
		return nil, embedErr("gemini", errors.New("empty embedding in response"))
	}
	return toFloat64(result.Embeddings[0].Values), nil
}
