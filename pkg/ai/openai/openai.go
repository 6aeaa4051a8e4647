package openai

import (
	"sync"

	"github.com/quillkb/quill/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// KGOpenAIClient implements ai.KGAIClient against any OpenAI-compatible
// API. It holds separate clients for embeddings and chat so the two can
// point at different providers.
type KGOpenAIClient struct {
	embeddingModel  string
	extractionModel string
	completionModel string

	chatURL      string
	embeddingURL string

	timeoutMin int
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewKGOpenAIClientParams configures a KGOpenAIClient.
//
// ExtractionModel runs schema-constrained extraction, CompletionModel
// plain completions (reranking, summaries), EmbeddingModel the vector
// embeddings. Leaving a URL empty targets the public OpenAI endpoint.
type NewKGOpenAIClientParams struct {
	EmbeddingModel  string
	ExtractionModel string
	CompletionModel string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	TimeoutMin            int
	MaxConcurrentRequests int64
}

// NewKGOpenAIClient creates a client from the given parameters.
func NewKGOpenAIClient(params NewKGOpenAIClientParams) *KGOpenAIClient {
	if params.TimeoutMin <= 0 {
		params.TimeoutMin = 5
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 8
	}

	return &KGOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		extractionModel: params.ExtractionModel,
		completionModel: params.CompletionModel,

		chatURL:      params.ChatURL,
		embeddingURL: params.EmbeddingURL,

		timeoutMin: params.TimeoutMin,
		reqLock:    semaphore.NewWeighted(params.MaxConcurrentRequests),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}
