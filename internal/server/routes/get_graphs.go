package routes

import (
	"net/http"

	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetGraphHandler returns one scope's graph with the display edge
// filter applied.
func GetGraphHandler(c echo.Context) error {
	type getGraphResponse struct {
		Message string        `json:"message"`
		Scope   string        `json:"scope,omitempty"`
		Graph   *common.Graph `json:"graph,omitempty"`
	}

	scope := c.Param("scope")
	if scope == "" {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Missing scope",
		})
	}

	app := c.(*middleware.AppContext).App
	graph, err := app.Builder.FetchDisplayGraph(c.Request().Context(), scope)
	if err != nil {
		logger.Error("Failed to fetch graph", "scope", scope, "err", err)
		return c.JSON(http.StatusInternalServerError, getGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getGraphResponse{
		Message: "OK",
		Scope:   scope,
		Graph:   &graph,
	})
}

// GetGraphStatsHandler returns node and edge counts for one scope.
func GetGraphStatsHandler(c echo.Context) error {
	type getGraphStatsResponse struct {
		Message string             `json:"message"`
		Scope   string             `json:"scope,omitempty"`
		Stats   *common.GraphStats `json:"stats,omitempty"`
	}

	scope := c.Param("scope")
	if scope == "" {
		return c.JSON(http.StatusBadRequest, getGraphStatsResponse{
			Message: "Missing scope",
		})
	}

	app := c.(*middleware.AppContext).App
	stats, err := app.GraphStore.Stats(c.Request().Context(), scope)
	if err != nil {
		logger.Error("Failed to fetch graph stats", "scope", scope, "err", err)
		return c.JSON(http.StatusInternalServerError, getGraphStatsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getGraphStatsResponse{
		Message: "OK",
		Scope:   scope,
		Stats:   &stats,
	})
}
