// Package graph builds scope-partitioned knowledge graphs from
// sections of teaching content. Sections are split into token-bounded
// units, each unit goes through structured extraction, and the
// results are normalized, deduplicated, filtered and persisted with a
// delete-edges-then-rewrite cycle per scope. A book-level merge folds
// section graphs into one graph under the book's scope.
package graph

import (
	"fmt"

	"github.com/quillkb/quill/backend/pkg/ai"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/store"

	"github.com/pkoukk/tiktoken-go"
)

// BuilderClient coordinates extraction, identity assignment and
// persistence. It bounds section-level and AI-level parallelism.
//
// A BuilderClient should be created using NewBuilderClient.
type BuilderClient struct {
	aiClient   ai.KGAIClient
	store      store.GraphStorage
	thresholds kg.Thresholds

	tokenEncoder       string
	encoder            *tiktoken.Tiktoken
	maxUnitTokens      int
	parallelSections   int
	parallelAiRequests int
	maxRetries         int
}

// NewBuilderClientParams defines the configuration for a BuilderClient.
//
// TokenEncoder names the tiktoken encoding used for unit splitting.
// MaxUnitTokens caps the size of a single extraction unit.
// ParallelSections bounds concurrent section builds, ParallelAiRequests
// bounds concurrent extraction calls within one section, and MaxRetries
// is the retry budget for transient extraction and store failures.
type NewBuilderClientParams struct {
	AIClient   ai.KGAIClient
	Store      store.GraphStorage
	Thresholds *kg.Thresholds

	TokenEncoder       string
	MaxUnitTokens      int
	ParallelSections   int
	ParallelAiRequests int
	MaxRetries         int
}

// NewBuilderClient creates a BuilderClient with the provided
// parameters, filling unset values with defaults.
func NewBuilderClient(params NewBuilderClientParams) (*BuilderClient, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("graph: ai client is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("graph: graph storage is required")
	}

	thresholds := kg.DefaultThresholds()
	if params.Thresholds != nil {
		thresholds = *params.Thresholds
	}
	tokenEncoder := params.TokenEncoder
	if tokenEncoder == "" {
		tokenEncoder = "o200k_base"
	}
	encoder, err := tiktoken.GetEncoding(tokenEncoder)
	if err != nil {
		return nil, fmt.Errorf("graph: init token encoder: %w", err)
	}

	maxUnitTokens := params.MaxUnitTokens
	if maxUnitTokens <= 0 {
		maxUnitTokens = 1200
	}
	parallelSections := params.ParallelSections
	if parallelSections <= 0 {
		parallelSections = 4
	}
	parallelAiRequests := params.ParallelAiRequests
	if parallelAiRequests <= 0 {
		parallelAiRequests = 8
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &BuilderClient{
		aiClient:           params.AIClient,
		store:              params.Store,
		thresholds:         thresholds,
		tokenEncoder:       tokenEncoder,
		encoder:            encoder,
		maxUnitTokens:      maxUnitTokens,
		parallelSections:   parallelSections,
		parallelAiRequests: parallelAiRequests,
		maxRetries:         maxRetries,
	}, nil
}
