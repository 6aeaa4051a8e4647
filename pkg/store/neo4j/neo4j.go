// Package neo4j persists scope-partitioned knowledge graphs in Neo4j.
// Nodes carry the Entity label and merge by deterministic id; edges
// merge by rid under a sanitized relationship type. Scopes partition
// edges, so re-indexing a section deletes its edges and rewrites them
// without touching nodes shared with other scopes.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/quillkb/quill/backend/internal/util"
	"github.com/quillkb/quill/backend/pkg/logger"
)

const defaultBatchSize = 500

type Store struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
}

type NewStoreParams struct {
	URI        string
	User       string
	Password   string
	Database   string
	TimeoutSec int
	MaxPool    int
	BatchSize  int
}

// NewStore connects to Neo4j, verifies connectivity and installs the
// uniqueness constraints. An unreachable store is a startup error.
func NewStore(ctx context.Context, params NewStoreParams) (*Store, error) {
	if params.URI == "" {
		return nil, fmt.Errorf("neo4j: uri is required")
	}
	if params.User == "" {
		params.User = "neo4j"
	}
	if params.TimeoutSec <= 0 {
		params.TimeoutSec = 10
	}
	if params.MaxPool <= 0 {
		params.MaxPool = 50
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultBatchSize
	}

	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.User, params.Password, ""),
		func(cfg *neo4j.Config) {
			cfg.MaxConnectionPoolSize = params.MaxPool
			cfg.SocketConnectTimeout = time.Duration(params.TimeoutSec) * time.Second
		},
	)
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, time.Duration(params.TimeoutSec)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &Store{
		driver:    driver,
		database:  params.Database,
		batchSize: params.BatchSize,
	}
	s.ensureSchema(ctx)
	return s, nil
}

// NewStoreFromEnv builds a store from NEO4J_* environment variables.
func NewStoreFromEnv(ctx context.Context) (*Store, error) {
	return NewStore(ctx, NewStoreParams{
		URI:        util.GetEnvString("NEO4J_URI", ""),
		User:       util.GetEnvString("NEO4J_USER", "neo4j"),
		Password:   util.GetEnvString("NEO4J_PASSWORD", ""),
		Database:   util.GetEnvString("NEO4J_DATABASE", ""),
		TimeoutSec: int(util.GetEnvNumeric("NEO4J_TIMEOUT_SECONDS", 10)),
		MaxPool:    int(util.GetEnvNumeric("NEO4J_MAX_POOL_SIZE", 50)),
	})
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// ensureSchema installs constraints and indexes best-effort. A failure
// is logged and ignored so a read-only user can still query.
func (s *Store) ensureSchema(ctx context.Context) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)`,
		`CREATE INDEX chunk_doc_id IF NOT EXISTS FOR (c:Chunk) ON (c.doc_id)`,
	}
	for _, stmt := range stmts {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			logger.Warn("neo4j schema init failed, continuing", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func (s *Store) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}
