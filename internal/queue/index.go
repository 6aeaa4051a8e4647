package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/retrieval"

	"github.com/rabbitmq/amqp091-go"
)

// ProcessIndexDocument chunks and embeds one document into the vector
// index and broadcasts an index.document.indexed event.
func ProcessIndexDocument(
	ctx context.Context,
	indexer *retrieval.Indexer,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(IndexDocumentMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid index message: %w", err)
	}
	if data.DocID == "" {
		return fmt.Errorf("index message missing doc id")
	}

	stats, err := indexer.IndexDocument(ctx, data.DocID, data.Scope, data.Text)
	if err != nil {
		return err
	}

	event, err := json.Marshal(struct {
		DocID string `json:"doc_id"`
		Scope string `json:"scope"`
		retrieval.IndexStats
	}{DocID: data.DocID, Scope: data.Scope, IndexStats: stats})
	if err != nil {
		logger.Error("Failed to marshal document indexed event", "doc_id", data.DocID, "err", err)
		return nil
	}
	if err := PublishTopic(ch, "index.document.indexed", event); err != nil {
		logger.Error("Failed to publish document indexed event", "doc_id", data.DocID, "err", err)
	}
	return nil
}
