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

// ProcessBookBuild builds every section of one book and merges the
// graphs that built successfully under the book id minted from the
// message's run id. Failed sections are reported in the event, not
// fatal; the build fails only when no section survives.
func ProcessBookBuild(
	ctx context.Context,
	builder *graph.BuilderClient,
	locks *leaselock.Client,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(BookBuildMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid book build message: %w", err)
	}
	if data.Topic == "" || data.RunID == "" {
		return fmt.Errorf("book build message missing topic or run id")
	}
	if len(data.Sections) == 0 {
		return fmt.Errorf("book build message has no sections")
	}

	batch := builder.BuildSections(ctx, data.Sections)
	if len(batch.Results) == 0 {
		return fmt.Errorf("book build %s: all %d sections failed", data.Topic, len(data.Sections))
	}

	sectionIDs := make([]string, 0, len(batch.Results))
	for _, res := range batch.Results {
		sectionIDs = append(sectionIDs, res.SectionID)
	}

	var merged graph.BookResult
	err := locks.WithLease(ctx, "book_merge:"+data.Topic, leaselock.Options{
		TTL:  30 * time.Minute,
		Wait: true,
	}, func(ctx context.Context) error {
		var mergeErr error
		merged, mergeErr = builder.MergeBookGraphRun(ctx, data.Topic, sectionIDs, data.RunID)
		return mergeErr
	})
	if err != nil {
		return err
	}

	event, err := json.Marshal(struct {
		graph.BookResult
		SectionErrors map[string]string `json:"section_errors,omitempty"`
	}{BookResult: merged, SectionErrors: batch.Errors})
	if err != nil {
		logger.Error("Failed to marshal book built event", "book_id", merged.BookID, "err", err)
		return nil
	}
	if err := PublishTopic(ch, "graph.book.built", event); err != nil {
		logger.Error("Failed to publish book built event", "book_id", merged.BookID, "err", err)
	}
	return nil
}
