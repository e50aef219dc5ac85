package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/storage"
)

// ObjectStore lists and downloads objects from a bucket.
type ObjectStore interface {
	Bucket() string
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// S3Source reads documents from an S3 bucket. Document names are object
// keys relative to the prefix.
type S3Source struct {
	store     ObjectStore
	prefix    string
	filter    ExtensionFilter
	extractor Extractor
}

// NewS3Source creates an S3Source. A nil extractor reads plain text.
func NewS3Source(store ObjectStore, prefix string, extensions []string, extractor Extractor) *S3Source {
	if extractor == nil {
		extractor = PlainTextExtractor{}
	}
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{
		store:     store,
		prefix:    prefix,
		filter:    NewExtensionFilter(extensions),
		extractor: extractor,
	}
}

// Name returns the s3:// URL of the source.
func (s *S3Source) Name() string {
	return fmt.Sprintf("s3://%s/%s", s.store.Bucket(), s.prefix)
}

// ListDocuments returns the matching keys under the prefix.
func (s *S3Source) ListDocuments(ctx context.Context) ([]string, error) {
	keys, err := s.store.ListKeys(ctx, s.prefix)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("failed to list %s", s.Name()), err)
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, s.prefix)
		if name == "" || isHidden(name) || !s.filter.Match(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadDocument downloads and extracts the document at name. Names are
// held to the same rules as listed keys.
func (s *S3Source) ReadDocument(ctx context.Context, name string) (domain.Document, error) {
	if err := checkName(name, s.filter); err != nil {
		return domain.Document{}, err
	}

	content, err := s.store.GetObject(ctx, s.prefix+name)
	if err != nil {
		if storage.IsNotFound(err) {
			return domain.Document{}, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("document %s not found", name), err)
		}
		return domain.Document{}, err
	}

	text, err := s.extractor.Extract(ctx, name, content)
	if err != nil {
		return domain.Document{}, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion, fmt.Sprintf("failed to extract %s", name), err)
	}
	return domain.Document{SourceFile: name, Text: text}, nil
}
