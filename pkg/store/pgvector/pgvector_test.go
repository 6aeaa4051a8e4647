package pgvector

import (
	"context"
	"testing"

	"github.com/quillkb/quill/backend/pkg/common"
)

func TestUpsertChunksRejectsCountMismatch(t *testing.T) {
	idx := &Index{dimension: 4}

	chunks := []common.Chunk{{ID: "c1"}, {ID: "c2"}}
	vectors := [][]float32{{1, 2, 3, 4}}
	if _, err := idx.UpsertChunks(context.Background(), chunks, vectors); err == nil {
		t.Fatal("expected error for chunk/vector count mismatch")
	}
}

func TestUpsertChunksRejectsWrongDimension(t *testing.T) {
	idx := &Index{dimension: 4}

	chunks := []common.Chunk{{ID: "c1"}}
	vectors := [][]float32{{1, 2}}
	if _, err := idx.UpsertChunks(context.Background(), chunks, vectors); err == nil {
		t.Fatal("expected error for wrong vector dimension")
	}
}

func TestUpsertChunksEmptyIsNoop(t *testing.T) {
	idx := &Index{dimension: 4}

	written, err := idx.UpsertChunks(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("UpsertChunks(nil) error = %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, expected 0", written)
	}
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	idx := &Index{dimension: 4}

	if _, err := idx.Search(context.Background(), []float32{1, 2}, 5, ""); err == nil {
		t.Fatal("expected error for wrong query dimension")
	}
}
