package routes

import (
	"encoding/json"
	"net/http"

	"github.com/quillkb/quill/backend/internal/queue"
	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/graph"
	"github.com/quillkb/quill/backend/pkg/kg"
	"github.com/quillkb/quill/backend/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// BuildSectionsHandler builds knowledge graphs for one or more
// sections. With wait=true the build runs in-request and returns the
// per-section results; otherwise each section is queued and the
// handler returns the section ids to poll.
func BuildSectionsHandler(c echo.Context) error {
	type sectionBody struct {
		Topic      string `json:"topic" validate:"required"`
		Chapter    string `json:"chapter"`
		Subchapter string `json:"subchapter" validate:"required"`
		Content    string `json:"content" validate:"required"`
	}

	type buildSectionsBody struct {
		Sections []sectionBody `json:"sections" validate:"required,min=1,dive"`
		Wait     bool          `json:"wait"`
	}

	type buildSectionsResponse struct {
		Message    string              `json:"message"`
		SectionIDs []string            `json:"section_ids,omitempty"`
		Results    []graph.BuildResult `json:"results,omitempty"`
		Errors     map[string]string   `json:"errors,omitempty"`
	}

	data := new(buildSectionsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildSectionsResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, buildSectionsResponse{
			Message: "Invalid request body",
		})
	}

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

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if data.Wait {
		batch := app.Builder.BuildSections(ctx, sections)
		return c.JSON(http.StatusOK, buildSectionsResponse{
			Message:    "Sections built",
			SectionIDs: sectionIDs,
			Results:    batch.Results,
			Errors:     batch.Errors,
		})
	}

	for _, section := range sections {
		msg := queue.SectionBuildMsg{
			Message: "Build section graph",
			Section: section,
		}
		msgBytes, err := json.Marshal(msg)
		if err != nil {
			logger.Error("Failed to marshal section build message", "err", err)
			return c.JSON(http.StatusInternalServerError, buildSectionsResponse{
				Message: "Internal server error",
			})
		}
		if err := queue.PublishFIFO(app.Queue, queue.SectionBuildQueue, msgBytes); err != nil {
			logger.Error("Failed to queue section build", "err", err)
			return c.JSON(http.StatusInternalServerError, buildSectionsResponse{
				Message: "Internal server error",
			})
		}
	}

	return c.JSON(http.StatusAccepted, buildSectionsResponse{
		Message:    "Sections queued for build",
		SectionIDs: sectionIDs,
	})
}
