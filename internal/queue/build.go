package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillkb/quill/backend/pkg/graph"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/leaselock"
	"github.com/quillkb/quill/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ProcessSectionBuild builds one section graph and broadcasts a
// graph.section.built event. Concurrent builds of the same section
// are serialized through a lease on the section scope. Returning an
// error routes the message to the retry queue.
func ProcessSectionBuild(
	ctx context.Context,
	builder *graph.BuilderClient,
	locks *leaselock.Client,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(SectionBuildMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid section build message: %w", err)
	}
	section := data.Section
	if section.Topic == "" || section.Subchapter == "" {
		return fmt.Errorf("section build message missing topic or subchapter")
	}

	scope := kg.SectionScope(kg.SectionID(section.Topic, section.Chapter, section.Subchapter))

	var result graph.BuildResult
	err := locks.WithLease(ctx, scope, leaselock.Options{
		TTL:  30 * time.Minute,
		Wait: true,
	}, func(ctx context.Context) error {
		var buildErr error
		result, buildErr = builder.BuildSectionGraph(ctx, section)
		return buildErr
	})
	if err != nil {
		return err
	}

	event, err := json.Marshal(result)
	if err != nil {
		logger.Error("Failed to marshal section built event", "section_id", result.SectionID, "err", err)
		return nil
	}
	if err := PublishTopic(ch, "graph.section.built", event); err != nil {
		logger.Error("Failed to publish section built event", "section_id", result.SectionID, "err", err)
	}
	return nil
}
