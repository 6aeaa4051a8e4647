package chunk

import (
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/quillkb/quill/backend/pkg/common"
	"github.com/quillkb/quill/backend/pkg/kg"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are sized in runes, not
	// bytes, so the same limits hold for CJK and mixed-script text.
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120

	// When a chunk would split mid-sentence, the boundary backs up to
	// the nearest sentence end, but at most this far.
	boundaryBackscan = 50
)

// Chunker splits documents into overlapping retrieval-sized chunks.
type Chunker struct {
	chunkSize int
	overlap   int
	encoder   *tiktoken.Tiktoken
}

// NewChunker creates a chunker with the given size and overlap in
// runes. Non-positive values fall back to the defaults.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultChunkOverlap
	}
	encoder, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		encoder:   encoder,
	}, nil
}

// Chunk splits text into chunks of at most chunkSize runes with
// overlap runes of context carried between consecutive chunks.
// Boundaries snap backwards to the nearest sentence end when one is
// close enough. Whitespace-only chunks are skipped. Chunk IDs are
// deterministic over (docID, index, content), and each chunk records
// the rune offsets of its trimmed content within the document.
func (c *Chunker) Chunk(text, docID, scope string) []common.Chunk {
	runes := []rune(text)
	length := len(runes)

	var chunks []common.Chunk
	start := 0
	index := 0
	for start < length {
		end := start + c.chunkSize
		if end > length {
			end = length
		}
		if end < length {
			end = snapToSentence(runes, start, end, c.chunkSize)
		}

		contentStart, contentEnd := trimBounds(runes, start, end)
		if contentStart < contentEnd {
			content := string(runes[contentStart:contentEnd])
			chunks = append(chunks, common.Chunk{
				ID:         kg.ChunkID(docID, index, content),
				DocID:      docID,
				Scope:      scope,
				Index:      index,
				Content:    content,
				TokenCount: len(c.encoder.Encode(content, nil, nil)),
				StartChar:  contentStart,
				EndChar:    contentEnd,
			})
			index++
		}
		if end >= length {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// trimBounds narrows [start, end) to the content without leading and
// trailing whitespace. start == end means the window was blank.
func trimBounds(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

// snapToSentence scans backwards from end for a sentence terminator,
// going no further back than boundaryBackscan runes and never below
// half a chunk. The rune at end itself counts, so a boundary can land
// one rune past the size limit.
func snapToSentence(runes []rune, start, end, chunkSize int) int {
	floor := start + chunkSize/2
	if low := end - boundaryBackscan; low > floor {
		floor = low
	}
	for i := end; i > floor; i-- {
		switch runes[i] {
		case '。', '！', '？', '\n', '.', '!', '?':
			return i + 1
		}
	}
	return end
}
