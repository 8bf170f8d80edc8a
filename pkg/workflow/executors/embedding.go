package executors

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// EmbeddingConfig configures an OpenAIEmbeddingService.
type EmbeddingConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// OpenAIEmbeddingService implements cache.EmbeddingService against an
// OpenAI-compatible embeddings endpoint, adapted from the teacher's
// embeddingService down to the single Embed call the semantic cache needs.
type OpenAIEmbeddingService struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbeddingService builds a service from cfg.
func NewOpenAIEmbeddingService(cfg EmbeddingConfig) *OpenAIEmbeddingService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbeddingService{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}
}

// Embed satisfies cache.EmbeddingService.
func (s *OpenAIEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.model),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating embedding")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}
