// Package query classifies user queries and rewrites them for retrieval.
package query

import (
	"context"
	"strings"

	"github.com/cloo-solutions/ragkit/internal/domain"
	"github.com/cloo-solutions/ragkit/internal/prompts"
)

// DefaultDomainContext is used in prompts when no domain context is configured.
const DefaultDomainContext = "the indexed documents"

// Completer sends a prompt to a text-understanding model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer classifies and rewrites queries with a Completer.
type Analyzer struct {
	completer     Completer
	prompts       *prompts.Store
	domainContext string
}

// NewAnalyzer creates an Analyzer. A nil store uses the built-in prompts.
func NewAnalyzer(completer Completer, store *prompts.Store, domainContext string) *Analyzer {
	if store == nil {
		store = prompts.Default()
	}
	if strings.TrimSpace(domainContext) == "" {
		domainContext = DefaultDomainContext
	}
	return &Analyzer{
		completer:     completer,
		prompts:       store,
		domainContext: domainContext,
	}
}

// DomainContext returns the context injected into rewrite prompts.
func (a *Analyzer) DomainContext() string {
	return a.domainContext
}

// Analyze classifies query in a single completion round trip.
func (a *Analyzer) Analyze(ctx context.Context, query string) (*domain.QueryAnalysis, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	prompt, err := a.prompts.Render(prompts.QueryAnalysis, prompts.QueryData{
		Query:  query,
		Domain: a.domainContext,
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "query analysis prompt", err)
	}

	reply, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "query analysis request failed", err)
	}

	return ParseAnalysis(reply, query)
}

// Rewrite analyzes query and then rewrites it according to its classification.
func (a *Analyzer) Rewrite(ctx context.Context, query string) (string, error) {
	analysis, err := a.Analyze(ctx, query)
	if err != nil {
		return "", err
	}
	return a.RewriteWithAnalysis(ctx, query, analysis)
}

// RewriteWithAnalysis rewrites query using a previous analysis. SmallTalk
// queries are returned unchanged without a model call. The result is never
// empty: an empty reply yields the original query.
func (a *Analyzer) RewriteWithAnalysis(ctx context.Context, query string, analysis *domain.QueryAnalysis) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", domain.ErrEmptyQuery
	}
	if analysis == nil || !analysis.Type.IsValid() {
		return "", domain.ErrInvalidQueryType
	}

	var name string
	switch analysis.Type {
	case domain.QueryTypeSmallTalk:
		return query, nil
	case domain.QueryTypeFactual:
		name = prompts.RewriteFactual
	case domain.QueryTypeAmbiguous:
		name = prompts.RewriteAmbiguous
	}

	data := prompts.QueryData{Query: query, Domain: a.domainContext}
	if hint := strings.TrimSpace(analysis.RewrittenQuery); hint != query {
		data.Hint = hint
	}

	prompt, err := a.prompts.Render(name, data)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "query rewrite prompt", err)
	}

	reply, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "query rewrite request failed", err)
	}

	if rewritten := cleanRewrite(reply); rewritten != "" {
		return rewritten, nil
	}
	return query, nil
}
