package queue

import "github.com/quillkb/quill/backend/pkg/common"

// SectionBuildMsg asks the worker to build one section's knowledge
// graph.
type SectionBuildMsg struct {
	Message string         `json:"message"`
	Section common.Section `json:"section"`
}

// BookBuildMsg asks the worker to build every section of a book and
// merge the results under the book id minted from RunID.
type BookBuildMsg struct {
	Message  string           `json:"message"`
	Topic    string           `json:"topic"`
	RunID    string           `json:"run_id"`
	Sections []common.Section `json:"sections"`
}

// BookMergeMsg asks the worker to merge the named section graphs into
// a book-level graph.
type BookMergeMsg struct {
	Message    string   `json:"message"`
	Topic      string   `json:"topic"`
	SectionIDs []string `json:"section_ids"`
}

// IndexDocumentMsg asks the worker to chunk, embed and index one
// document.
type IndexDocumentMsg struct {
	Message string `json:"message"`
	DocID   string `json:"doc_id"`
	Scope   string `json:"scope"`
	Text    string `json:"text"`
}
