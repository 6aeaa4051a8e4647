package routes

import (
	"encoding/json"
	"net/http"

	"github.com/quillkb/quill/backend/internal/queue"
	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/retrieval"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// IndexDocumentHandler chunks, embeds and indexes one document into
// the vector index, in-request with wait=true or queued otherwise.
func IndexDocumentHandler(c echo.Context) error {
	type indexDocumentBody struct {
		DocID string `json:"doc_id" validate:"required"`
		Scope string `json:"scope"`
		Text  string `json:"text" validate:"required"`
		Wait  bool   `json:"wait"`
	}

	type indexDocumentResponse struct {
		Message string                `json:"message"`
		Stats   *retrieval.IndexStats `json:"stats,omitempty"`
	}

	data := new(indexDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, indexDocumentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, indexDocumentResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if data.Wait {
		stats, err := app.Indexer.IndexDocument(ctx, data.DocID, data.Scope, data.Text)
		if err != nil {
			logger.Error("Failed to index document", "doc_id", data.DocID, "err", err)
			return c.JSON(http.StatusUnprocessableEntity, indexDocumentResponse{
				Message: "Indexing failed",
			})
		}
		return c.JSON(http.StatusOK, indexDocumentResponse{
			Message: "Document indexed",
			Stats:   &stats,
		})
	}

	msg := queue.IndexDocumentMsg{
		Message: "Index document",
		DocID:   data.DocID,
		Scope:   data.Scope,
		Text:    data.Text,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal index message", "err", err)
		return c.JSON(http.StatusInternalServerError, indexDocumentResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.IndexQueue, msgBytes); err != nil {
		logger.Error("Failed to queue document indexing", "err", err)
		return c.JSON(http.StatusInternalServerError, indexDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, indexDocumentResponse{
		Message: "Document queued for indexing",
	})
}

// DeleteDocumentHandler removes every indexed chunk of one document.
func DeleteDocumentHandler(c echo.Context) error {
	type deleteDocumentResponse struct {
		Message string `json:"message"`
		Deleted int    `json:"deleted"`
	}

	docID := c.Param("doc_id")
	if docID == "" {
		return c.JSON(http.StatusBadRequest, deleteDocumentResponse{
			Message: "Missing document id",
		})
	}

	app := c.(*middleware.AppContext).App
	deleted, err := app.Indexer.DeleteDocument(c.Request().Context(), docID)
	if err != nil {
		logger.Error("Failed to delete document", "doc_id", docID, "err", err)
		return c.JSON(http.StatusInternalServerError, deleteDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteDocumentResponse{
		Message: "Document deleted",
		Deleted: deleted,
	})
}
