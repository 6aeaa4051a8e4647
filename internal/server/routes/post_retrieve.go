package routes

import (
	"net/http"

	"github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/retrieval"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RetrieveHandler answers a query with merged dual-channel evidence.
func RetrieveHandler(c echo.Context) error {
	type retrieveBody struct {
		Query        string `json:"query" validate:"required"`
		TopK         int    `json:"top_k"`
		Scope        string `json:"scope"`
		IncludeGraph *bool  `json:"include_graph"`
	}

	type retrieveResponse struct {
		Message string                     `json:"message"`
		Result  *retrieval.RetrievalResult `json:"result,omitempty"`
	}

	data := new(retrieveBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, retrieveResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, retrieveResponse{
			Message: "Invalid request body",
		})
	}

	includeGraph := true
	if data.IncludeGraph != nil {
		includeGraph = *data.IncludeGraph
	}

	app := c.(*middleware.AppContext).App
	result, err := app.Retriever.Retrieve(c.Request().Context(), retrieval.RetrieveParams{
		Query:        data.Query,
		TopK:         data.TopK,
		Scope:        data.Scope,
		IncludeGraph: includeGraph,
	})
	if err != nil {
		logger.Error("Retrieval failed", "query", data.Query, "err", err)
		return c.JSON(http.StatusInternalServerError, retrieveResponse{
			Message: "Retrieval failed",
		})
	}

	return c.JSON(http.StatusOK, retrieveResponse{
		Message: "OK",
		Result:  &result,
	})
}
