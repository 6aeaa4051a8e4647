package routes

import (
	"net/http"

	"github.com/quillkb/quill/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness of the service and its stores.
func HealthHandler(c echo.Context) error {
	type healthResponse struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		Neo4j    string `json:"neo4j"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	res := healthResponse{Status: "ok", Postgres: "ok", Neo4j: "ok"}
	status := http.StatusOK

	if err := app.DBConn.Ping(ctx); err != nil {
		res.Status = "degraded"
		res.Postgres = err.Error()
		status = http.StatusServiceUnavailable
	}
	if _, err := app.GraphStore.Stats(ctx, ""); err != nil {
		res.Status = "degraded"
		res.Neo4j = err.Error()
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, res)
}
