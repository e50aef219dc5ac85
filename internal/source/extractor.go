// Package source lists and extracts the documents fed into ingestion.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// DefaultExtensions are the file extensions ingested when none are configured.
var DefaultExtensions = []string{".txt", ".md", ".markdown"}

// ErrNotText is returned for content that is not valid UTF-8 text.
var ErrNotText = errors.New("content is not valid UTF-8 text")

// Extractor turns raw document content into text. Page breaks are returned
// as newlines.
type Extractor interface {
	Extract(ctx context.Context, name string, content []byte) (string, error)
}

// PlainTextExtractor reads UTF-8 text and Markdown files.
type PlainTextExtractor struct{}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extract implements Extractor.
func (PlainTextExtractor) Extract(_ context.Context, name string, content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%s: %w", name, ErrNotText)
	}
	return NormalizeText(string(content)), nil
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n")

// NormalizeText converts CRLF and CR line endings and form feeds to "\n".
func NormalizeText(s string) string {
	return newlineReplacer.Replace(s)
}

// ExtensionFilter matches file names by extension, case-insensitively.
type ExtensionFilter []string

// NewExtensionFilter normalises exts to lower case with a leading dot. An
// empty list yields DefaultExtensions.
func NewExtensionFilter(exts []string) ExtensionFilter {
	var out ExtensionFilter
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return NewExtensionFilter(DefaultExtensions)
	}
	return out
}

// Match reports whether name has one of the filter's extensions.
func (f ExtensionFilter) Match(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range f {
		if ext == e {
			return true
		}
	}
	return false
}

// checkName rejects document names that escape the source root or that
// the source would never list.
func checkName(name string, filter ExtensionFilter) error {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) || slices.Contains(strings.Split(name, "/"), "..") {
		return domain.NewDomainError(domain.ErrCodeIngestion, fmt.Sprintf("document %s is outside the source", name))
	}
	if isHidden(name) || !filter.Match(name) {
		return domain.NewDomainError(domain.ErrCodeIngestion, fmt.Sprintf("document %s is not an indexable document", name))
	}
	return nil
}

// isHidden reports whether any element of a slash-separated path starts with a dot.
func isHidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
