package kg

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// NodeTypeDefault is the node type assumed when the extractor gives
// none. It is omitted from node IDs to keep the common case short.
const NodeTypeDefault = "concept"

const (
	// maxNodeIDLength is the hard cap for node IDs. Longer IDs are
	// truncated and suffixed with a digest so distinct names that share
	// a long prefix never collapse into the same ID.
	maxNodeIDLength = 64

	nodeIDPrefixLength = 50
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Slug converts a name into a lowercase identifier. Runs of
// non-alphanumeric characters collapse into a single underscore and
// leading or trailing underscores are trimmed.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Canonicalize normalizes an entity name for identity purposes:
// surrounding whitespace is trimmed, internal whitespace runs collapse
// into a single space, and the result is lowercased.
func Canonicalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ContentHash digests a text after whitespace normalization, so
// reflowed but otherwise identical content hashes the same.
func ContentHash(text string) string {
	if text == "" {
		return ""
	}
	return md5Hex(strings.Join(strings.Fields(text), " "))
}

// NodeID derives the deterministic node ID for an entity. Two
// extraction runs over the same (canonical name, type, scope) always
// produce the same ID, which is what makes node upserts idempotent.
//
// The ID is the slug of the canonical name, followed by the type when
// it is not the default, followed by a short scope digest. IDs longer
// than 64 runes keep their first 50 runes plus an 8-rune digest of
// the full ID.
func NodeID(name, nodeType, scope string) string {
	slugName := Slug(Canonicalize(name))
	if slugName == "" {
		return ""
	}
	parts := []string{slugName}
	if nodeType != "" && !strings.EqualFold(nodeType, NodeTypeDefault) {
		parts = append(parts, strings.ToLower(nodeType))
	}
	if scope != "" {
		parts = append(parts, md5Hex(scope)[:8])
	}
	id := strings.Join(parts, "_")
	runes := []rune(id)
	if len(runes) <= maxNodeIDLength {
		return id
	}
	return string(runes[:nodeIDPrefixLength]) + "_" + md5Hex(id)[:8]
}

// RelationID derives the deterministic edge ID. Two extractions of the
// same relation within the same scope always produce the same RID.
func RelationID(relType, sourceID, targetID, scope string) string {
	return md5Hex(relType + "|" + sourceID + "|" + targetID + "|" + scope)[:16]
}

// SectionID derives the ID of a section from its position in the book.
func SectionID(topic, chapter, subchapter string) string {
	return md5Hex(topic + "|" + chapter + "|" + subchapter)[:12]
}

// BookID derives the ID of a book build run. Distinct runs over the
// same topic get distinct book scopes, so a re-run never clashes with
// an earlier build that is still being served.
func BookID(topic, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("book:%s:%s", Slug(topic), short)
}

// ChunkID derives the ID for a vector index chunk from its document,
// position, and content digest.
func ChunkID(docID string, index int, text string) string {
	return fmt.Sprintf("%s_chunk_%04d_%s", docID, index, md5Hex(text)[:8])
}

// SectionScope returns the scope key for a section graph.
func SectionScope(sectionID string) string {
	return "section:" + sectionID
}

// BookScope returns the scope key for a book graph. Book IDs already
// carry the "book:" prefix, so they pass through unchanged.
func BookScope(bookID string) string {
	if strings.HasPrefix(bookID, "book:") {
		return bookID
	}
	return "book:" + bookID
}
