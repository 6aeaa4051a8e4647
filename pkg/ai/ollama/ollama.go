package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/quillkb/quill/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// KGOllamaClient implements ai.KGAIClient against a locally-hosted
// Ollama server.
type KGOllamaClient struct {
	embeddingModel  string
	extractionModel string
	completionModel string

	timeoutMin int
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewKGOllamaClientParams contains configuration for a KGOllamaClient.
type NewKGOllamaClientParams struct {
	EmbeddingModel  string
	ExtractionModel string
	CompletionModel string

	BaseURL string
	ApiKey  string

	TimeoutMin            int
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewKGOllamaClient creates an Ollama-backed AI client. It connects to
// the server at BaseURL (or the Ollama default when empty) and sends
// ApiKey as a bearer token when set, which lets the same client talk
// to authenticated Ollama-compatible gateways.
func NewKGOllamaClient(params NewKGOllamaClientParams) (*KGOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	if params.TimeoutMin <= 0 {
		params.TimeoutMin = 10
	}
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 2
	}

	return &KGOllamaClient{
		embeddingModel:  params.EmbeddingModel,
		extractionModel: params.ExtractionModel,
		completionModel: params.CompletionModel,

		timeoutMin: params.TimeoutMin,
		reqLock:    semaphore.NewWeighted(params.MaxConcurrentRequests),

		Client: api.NewClient(u, httpClient),
	}, nil
}
