package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillkb/quill/backend/pkg/graph"
	"github.com/quillkb/quill/backend/pkg/leaselock"
	"github.com/quillkb/quill/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ProcessBookMerge merges section graphs into a fresh book graph and
// broadcasts a graph.book.merged event. Merges of the same topic are
// serialized through a lease so two runs cannot interleave their
// section reads.
func ProcessBookMerge(
	ctx context.Context,
	builder *graph.BuilderClient,
	locks *leaselock.Client,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(BookMergeMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid book merge message: %w", err)
	}
	if data.Topic == "" {
		return fmt.Errorf("book merge message missing topic")
	}
	if len(data.SectionIDs) == 0 {
		return fmt.Errorf("book merge message has no section ids")
	}

	var result graph.BookResult
	err := locks.WithLease(ctx, "book_merge:"+data.Topic, leaselock.Options{
		TTL:  30 * time.Minute,
		Wait: true,
	}, func(ctx context.Context) error {
		var mergeErr error
		result, mergeErr = builder.MergeBookGraph(ctx, data.Topic, data.SectionIDs)
		return mergeErr
	})
	if err != nil {
		return err
	}

	event, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to marshal book merged event", "book_id", result.BookID, "err", err)
		return nil
	}
	if err := PublishTopic(ch, "graph.book.merged", event); err != nil {
		logger.Error("Failed to publish book merged event", "book_id", result.BookID, "err", err)
	}
	return nil
}
