package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/quillkb/quill/backend/internal/queue"
	mid "github.com/quillkb/quill/backend/internal/server/middleware"
	"github.com/quillkb/quill/backend/internal/util"
	"github.com/quillkb/quill/backend/pkg/graph"
	"github.com/quillkb/quill/backend/pkg/logger"
	"github.com/quillkb/quill/backend/pkg/retrieval"
	"github.com/quillkb/quill/backend/pkg/store/neo4j"
	"github.com/quillkb/quill/backend/pkg/store/pgvector"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func runMigrations(databaseURL string) {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		logger.Fatal("Failed to init migrations", "err", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	runMigrations(databaseURL)

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}

	if err := queue.SetupQueues(ch, queue.Queues()); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	aiClient := mid.NewAIClientFromEnv()

	dimension := int(util.GetEnvNumeric("EMBEDDING_DIMENSION", 1024))
	vectorIndex, err := pgvector.NewIndex(ctx, conn, dimension)
	if err != nil {
		logger.Fatal("Failed to initialize vector index", "err", err)
	}

	graphStore, err := neo4j.NewStoreFromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to neo4j", "err", err)
	}
	defer graphStore.Close(context.Background())

	builder, err := graph.NewBuilderClient(graph.NewBuilderClientParams{
		AIClient:           aiClient,
		Store:              graphStore,
		ParallelSections:   int(util.GetEnvNumeric("GRAPH_PARALLEL_SECTIONS", 4)),
		ParallelAiRequests: int(util.GetEnvNumeric("GRAPH_PARALLEL_AI_REQUESTS", 8)),
	})
	if err != nil {
		logger.Fatal("Failed to create graph builder", "err", err)
	}

	retriever, err := retrieval.NewRetriever(retrieval.NewRetrieverParams{
		AIClient:    aiClient,
		GraphStore:  graphStore,
		VectorIndex: vectorIndex,
		UseReranker: util.GetEnvBool("USE_RERANKER", false),
	})
	if err != nil {
		logger.Fatal("Failed to create retriever", "err", err)
	}

	indexer, err := retrieval.NewIndexer(retrieval.NewIndexerParams{
		AIClient:    aiClient,
		VectorIndex: vectorIndex,
		GraphStore:  graphStore,
	})
	if err != nil {
		logger.Fatal("Failed to create indexer", "err", err)
	}

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")

	app := &mid.App{
		DBConn: conn,
		Queue:  ch,
		Key:    &k,

		AiClient:   aiClient,
		GraphStore: graphStore,
		Builder:    builder,
		Retriever:  retriever,
		Indexer:    indexer,

		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
