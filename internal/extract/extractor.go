// Package extract turns uploaded files into plain text for indexing.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for binary formats that cannot be read.
var ErrUnsupported = errors.New("unsupported file type")

// Document is the text extracted from an upload.
type Document struct {
	Title    string
	Filename string
	FileType string
	Content  string
}

// Extractor extracts plain text from uploaded files.
type Extractor struct {
	maxBytes int64
}

// NewExtractor returns an extractor rejecting uploads larger than maxBytes (0 means no limit).
func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{maxBytes: maxBytes}
}

// Extract reads content according to the filename's extension. The title defaults
// to the base filename. Unknown extensions are read as UTF-8 text.
func (e *Extractor) Extract(filename string, content []byte) (*Document, error) {
	if e.maxBytes > 0 && int64(len(content)) > e.maxBytes {
		return nil, fmt.Errorf("file %s is %d bytes, limit is %d", filename, len(content), e.maxBytes)
	}
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", base, err)
	}
	return &Document{
		Title:    base,
		Filename: base,
		FileType: FileType(ext),
		Content:  strings.TrimSpace(text),
	}, nil
}

// ExtractBytes extracts text from content based on the given extension,
// which includes the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".doc", ".xls", ".ppt", ".zip", ".png", ".jpg", ".jpeg", ".gif":
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	default:
		return extractPlain(content), nil
	}
}

// FileType returns the stored file type for an extension: the extension without
// its dot, or "txt" for extensionless and unrecognized text files.
func FileType(ext string) string {
	switch ext {
	case ".pdf", ".docx", ".xlsx", ".md", ".csv", ".json", ".html":
		return strings.TrimPrefix(ext, ".")
	default:
		return "txt"
	}
}
