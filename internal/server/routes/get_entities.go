package routes

import (
	"net/http"
	"strconv"

	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// SearchEntitiesHandler runs a ranked entity search within one scope.
func SearchEntitiesHandler(c echo.Context) error {
	type searchEntitiesResponse struct {
		Message string            `json:"message"`
		Hits    []store.EntityHit `json:"hits,omitempty"`
	}

	scope := c.Param("scope")
	query := c.QueryParam("q")
	if scope == "" || query == "" {
		return c.JSON(http.StatusBadRequest, searchEntitiesResponse{
			Message: "Missing scope or query",
		})
	}

	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, searchEntitiesResponse{
				Message: "Invalid limit",
			})
		}
		limit = parsed
	}

	app := c.(*middleware.AppContext).App
	hits, err := app.GraphStore.SearchEntities(c.Request().Context(), query, nil, scope, limit)
	if err != nil {
		logger.Error("Entity search failed", "scope", scope, "err", err)
		return c.JSON(http.StatusInternalServerError, searchEntitiesResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, searchEntitiesResponse{
		Message: "OK",
		Hits:    hits,
	})
}
