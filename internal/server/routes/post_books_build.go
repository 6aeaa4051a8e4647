package routes

import (
	"encoding/json"
	"net/http"

	"github.com/quillkb/quill/backend/internal/queue"
	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// BuildBookHandler queues a full book build: every section is built
// and the surviving graphs are merged under a book id minted here, so
// the caller can poll the returned book id.
func BuildBookHandler(c echo.Context) error {
	type sectionBody struct {
		Topic      string `json:"topic" validate:"required"`
		Chapter    string `json:"chapter"`
		Subchapter string `json:"subchapter" validate:"required"`
		Content    string `json:"content" validate:"required"`
	}

	type buildBookBody struct {
		Topic    string        `json:"topic" validate:"required"`
		Sections []sectionBody `json:"sections" validate:"required,min=1,dive"`
	}

	type buildBookResponse struct {
		Message    string   `json:"message"`
		RunID      string   `json:"run_id,omitempty"`
		BookID     string   `json:"book_id,omitempty"`
		SectionIDs []string `json:"section_ids,omitempty"`
	}

	data := new(buildBookBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildBookResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildBookResponse{
			Message: "Invalid request body",
		})
	}

	runID, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate run id", "err", err)
		return c.JSON(http.StatusInternalServerError, buildBookResponse{
			Message: "Internal server error",
		})
	}
	bookID := kg.BookID(data.Topic, runID)

	sections := make([]common.Section, len(data.Sections))
	sectionIDs := make([]string, len(data.Sections))
	for i, s := range data.Sections {
		sections[i] = common.Section{
			Topic:      s.Topic,
			Chapter:    s.Chapter,
			Subchapter: s.Subchapter,
			Content:    s.Content,
		}
		sectionIDs[i] = kg.SectionID(s.Topic, s.Chapter, s.Subchapter)
	}

	msg := queue.BookBuildMsg{
		Message:  "Build book graph",
		Topic:    data.Topic,
		RunID:    runID,
		Sections: sections,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal book build message", "err", err)
		return c.JSON(http.StatusInternalServerError, buildBookResponse{
			Message: "Internal server error",
		})
	}

	app := c.(*middleware.AppContext).App
	if err := queue.PublishFIFO(app.Queue, queue.BookBuildQueue, msgBytes); err != nil {
		logger.Error("Failed to queue book build", "err", err)
		return c.JSON(http.StatusInternalServerError, buildBookResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, buildBookResponse{
		Message:    "Book build queued",
		RunID:      runID,
		BookID:     bookID,
		SectionIDs: sectionIDs,
	})
}
