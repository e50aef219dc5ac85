package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// Source is the contract shared by every document source.
type Source interface {
	Name() string
	ListDocuments(ctx context.Context) ([]string, error)
	ReadDocument(ctx context.Context, name string) (domain.Document, error)
}

// Subset restricts a source to a fixed list of document names. Names the
// wrapped source does not list are reported as failures when read.
type Subset struct {
	Source
	names []string

	once    sync.Once
	listed  map[string]struct{}
	listErr error
}

// Only returns a view of src listing just names, in the given order.
func Only(src Source, names []string) *Subset {
	return &Subset{Source: src, names: append([]string(nil), names...)}
}

// ListDocuments returns the names of the subset.
func (s *Subset) ListDocuments(context.Context) ([]string, error) {
	return append([]string(nil), s.names...), nil
}

// ReadDocument reads name from the wrapped source if that source lists it.
func (s *Subset) ReadDocument(ctx context.Context, name string) (domain.Document, error) {
	s.once.Do(func() {
		names, err := s.Source.ListDocuments(ctx)
		if err != nil {
			s.listErr = err
			return
		}
		s.listed = make(map[string]struct{}, len(names))
		for _, n := range names {
			s.listed[n] = struct{}{}
		}
	})
	if s.listErr != nil {
		return domain.Document{}, s.listErr
	}
	if _, ok := s.listed[name]; !ok {
		return domain.Document{}, domain.NewDomainError(domain.ErrCodeIngestion, fmt.Sprintf("document %s is not in %s", name, s.Source.Name()))
	}
	return s.Source.ReadDocument(ctx, name)
}
