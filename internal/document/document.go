// Package document sniffs uploaded contract documents, computes their
// metadata, and extracts their text by page range or in full.
package document

// FileType identifies the container format of a source document.
type FileType string

// Supported file types.
const (
	PDF  FileType = "pdf"
	DOCX FileType = "docx"
	DOC  FileType = "doc"
	Text FileType = "text"
)

const (
	// DefaultChunkCharSize is the character stride used when a policy does not set one.
	DefaultChunkCharSize = 10000
	// PagesPerEstimatedChunk is the page count that contributes one estimated chunk.
	PagesPerEstimatedChunk = 50
)

// Paginated reports whether documents of this type are partitioned by page.
func (t FileType) Paginated() bool {
	return t == PDF
}

// Metadata describes a source document. It is immutable once computed.
type Metadata struct {
	FileType            FileType `json:"file_type"`
	PageCount           int      `json:"page_count"`
	ByteSize            int64    `json:"byte_size"`
	EstimatedChunkCount int      `json:"estimated_chunk_count"`
	ChunkCharSize       int      `json:"chunk_char_size"`
}
