package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/quillkb/quill/backend/pkg/ai"
	"github.com/quillkb/quill/backend/pkg/graph"
	"github.com/quillkb/quill/backend/pkg/retrieval"
	"github.com/quillkb/quill/backend/pkg/store"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

type App struct {
	DBConn *pgxpool.Pool
	Queue  *amqp091.Channel
	Key    *keyfunc.Keyfunc

	AiClient   ai.KGAIClient
	GraphStore store.GraphStorage
	Builder    *graph.BuilderClient
	Retriever  *retrieval.Retriever
	Indexer    *retrieval.Indexer

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
