package routes

import (
	"encoding/json"
	"net/http"

	"github.com/quillkb/quill/backend/internal/queue"
	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/graph"
	"github.com/quillkb/quill/backend/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// MergeBookHandler merges section graphs into a book-level graph.
// With wait=true the merge runs in-request and returns the book id
// and dedup stats; otherwise the merge is queued.
func MergeBookHandler(c echo.Context) error {
	type mergeBookBody struct {
		Topic      string   `json:"topic" validate:"required"`
		SectionIDs []string `json:"section_ids" validate:"required,min=1"`
		Wait       bool     `json:"wait"`
	}

	type mergeBookResponse struct {
		Message string            `json:"message"`
		Result  *graph.BookResult `json:"result,omitempty"`
	}

	data := new(mergeBookBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeBookResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeBookResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if data.Wait {
		result, err := app.Builder.MergeBookGraph(ctx, data.Topic, data.SectionIDs)
		if err != nil {
			logger.Error("Failed to merge book graph", "topic", data.Topic, "err", err)
			return c.JSON(http.StatusUnprocessableEntity, mergeBookResponse{
				Message: "Book merge failed",
			})
		}
		return c.JSON(http.StatusOK, mergeBookResponse{
			Message: "Book graph merged",
			Result:  &result,
		})
	}

	msg := queue.BookMergeMsg{
		Message:    "Merge book graph",
		Topic:      data.Topic,
		SectionIDs: data.SectionIDs,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal book merge message", "err", err)
		return c.JSON(http.StatusInternalServerError, mergeBookResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.BookMergeQueue, msgBytes); err != nil {
		logger.Error("Failed to queue book merge", "err", err)
		return c.JSON(http.StatusInternalServerError, mergeBookResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, mergeBookResponse{
		Message: "Book merge queued",
	})
}
