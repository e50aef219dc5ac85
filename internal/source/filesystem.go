package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// FilesystemSource reads documents from a directory tree. Document names
// are slash-separated paths relative to the root.
type FilesystemSource struct {
	root      string
	filter    ExtensionFilter
	extractor Extractor
}

// NewFilesystemSource creates a FilesystemSource. A nil extractor reads plain text.
func NewFilesystemSource(root string, extensions []string, extractor Extractor) *FilesystemSource {
	if extractor == nil {
		extractor = PlainTextExtractor{}
	}
	return &FilesystemSource{
		root:      root,
		filter:    NewExtensionFilter(extensions),
		extractor: extractor,
	}
}

// Name returns the root directory.
func (s *FilesystemSource) Name() string {
	return s.root
}

// Root returns the root directory.
func (s *FilesystemSource) Root() string {
	return s.root
}

// ListDocuments walks the root recursively and returns matching files in
// lexical order. Hidden files and directories are skipped.
func (s *FilesystemSource) ListDocuments(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("documents directory %s is not accessible", s.root), err)
	}
	if !info.IsDir() {
		return nil, domain.NewDomainError(domain.ErrCodeIngestion, fmt.Sprintf("%s is not a directory", s.root))
	}

	var names []string
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// unreadable subdirectories are skipped
			if d != nil && d.IsDir() && p != s.root {
				return fs.SkipDir
			}
			return walkErr
		}

		rel, err := s.relative(p)
		if err != nil {
			return err
		}
		if rel != "." && isHidden(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if s.filter.Match(rel) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}

	sort.Strings(names)
	return names, nil
}

// ReadDocument reads and extracts the document at name. Names must be
// root-relative and pass the extension filter. Reads go through os.Root,
// so symlinks cannot lead outside the root either.
func (s *FilesystemSource) ReadDocument(ctx context.Context, name string) (domain.Document, error) {
	if err := checkName(name, s.filter); err != nil {
		return domain.Document{}, err
	}

	content, err := s.readFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Document{}, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("document %s not found", name), err)
		}
		return domain.Document{}, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("failed to read %s", name), err)
	}

	text, err := s.extractor.Extract(ctx, name, content)
	if err != nil {
		return domain.Document{}, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("failed to extract %s", name), err)
	}
	return domain.Document{SourceFile: name, Text: text}, nil
}

func (s *FilesystemSource) readFile(name string) ([]byte, error) {
	root, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, err
	}
	defer root.Close()
	return root.ReadFile(filepath.FromSlash(name))
}

// Relative converts an absolute or root-relative path into a document name.
func (s *FilesystemSource) Relative(p string) (string, error) {
	return s.relative(p)
}

func (s *FilesystemSource) relative(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
