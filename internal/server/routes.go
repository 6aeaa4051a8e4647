package server

import (
	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", routes.HealthHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph build routes
	apiRoutes.POST("/sections/build", routes.BuildSectionsHandler, middleware.RequirePermission("graph.build"))
	apiRoutes.POST("/books/build", routes.BuildBookHandler, middleware.RequirePermission("graph.build"))
	apiRoutes.POST("/books/merge", routes.MergeBookHandler, middleware.RequirePermission("graph.merge"))

	// Graph read routes
	apiRoutes.GET("/graphs/:scope", routes.GetGraphHandler, middleware.RequirePermission("graph.view"))
	apiRoutes.GET("/graphs/:scope/stats", routes.GetGraphStatsHandler, middleware.RequirePermission("graph.view"))
	apiRoutes.GET("/graphs/:scope/entities", routes.SearchEntitiesHandler, middleware.RequirePermission("graph.view"))

	// Index routes
	apiRoutes.POST("/index", routes.IndexDocumentHandler, middleware.RequirePermission("index.write"))
	apiRoutes.DELETE("/documents/:doc_id", routes.DeleteDocumentHandler, middleware.RequirePermission("index.delete"))

	// Retrieval routes
	apiRoutes.POST("/retrieve", routes.RetrieveHandler, middleware.RequirePermission("retrieve.query"))
}
