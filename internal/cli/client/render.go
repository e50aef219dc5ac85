package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
)

// SnippetLength is the number of characters of chunk content shown per result.
const SnippetLength = 200

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Title   lipgloss.Style
	Score   lipgloss.Style
	Source  lipgloss.Style
	Snippet lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// DefaultStyles returns the colour styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Score:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Source:  lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4")).Underline(true),
		Snippet: lipgloss.NewStyle().PaddingLeft(2),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
}

// PlainStyles renders without colour, for tests and non-terminal output.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{
		Title:   s,
		Score:   s,
		Source:  s,
		Snippet: s.PaddingLeft(2),
		Muted:   s,
		Success: s,
		Warning: s,
		Error:   s,
	}
}

// Renderer writes command results either as styled text or as JSON.
type Renderer struct {
	w      io.Writer
	styles Styles
	json   bool
}

func NewRenderer(w io.Writer, styles Styles, asJSON bool) *Renderer {
	return &Renderer{w: w, styles: styles, json: asJSON}
}

func (r *Renderer) writeJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = fmt.Fprintln(r.w, string(output))
	return err
}

// Results renders a ranked result list.
func (r *Renderer) Results(resp *handlers.SearchResponse) error {
	if r.json {
		return r.writeJSON(resp)
	}
	r.results(resp.Results)
	return nil
}

func (r *Renderer) results(results []*handlers.SearchResultResponse) {
	if len(results) == 0 {
		fmt.Fprintln(r.w, r.styles.Muted.Render("No results found."))
		return
	}

	for i, res := range results {
		fmt.Fprintf(r.w, "%d. %s  %s\n",
			i+1,
			r.styles.Score.Render(fmt.Sprintf("%.4f", res.Score)),
			r.styles.Source.Render(res.SourceFile),
		)
		fmt.Fprintln(r.w, r.styles.Snippet.Render(Snippet(res.Content, SnippetLength)))
		fmt.Fprintln(r.w)
	}
}

// Analysis renders a query classification.
func (r *Renderer) Analysis(resp *handlers.AnalysisResponse) error {
	if r.json {
		return r.writeJSON(resp)
	}
	r.analysis(resp)
	return nil
}

func (r *Renderer) analysis(a *handlers.AnalysisResponse) {
	if a == nil {
		return
	}
	fmt.Fprintf(r.w, "%s %s\n", r.styles.Title.Render("Type:"), a.Type)
	fmt.Fprintf(r.w, "%s %s\n", r.styles.Title.Render("Rewritten:"), a.RewrittenQuery)
	if a.Reasoning != "" {
		fmt.Fprintf(r.w, "%s %s\n", r.styles.Title.Render("Reasoning:"), r.styles.Muted.Render(a.Reasoning))
	}
}

// Retrieval renders the analysis followed by the results.
func (r *Renderer) Retrieval(resp *handlers.RetrieveResponse) error {
	if r.json {
		return r.writeJSON(resp)
	}
	r.analysis(resp.Analysis)
	if resp.Analysis == nil || resp.Analysis.RewrittenQuery != resp.RewrittenQuery {
		fmt.Fprintf(r.w, "%s %s\n", r.styles.Title.Render("Searched:"), resp.RewrittenQuery)
	}
	fmt.Fprintln(r.w)
	r.results(resp.Results)
	return nil
}

// Ingest renders an ingestion report.
func (r *Renderer) Ingest(resp *handlers.IngestResponse) error {
	if r.json {
		return r.writeJSON(resp)
	}

	if resp.Documents == 0 && len(resp.Failures) == 0 {
		fmt.Fprintf(r.w, "%s %s\n", r.styles.Warning.Render("No documents found in"), resp.Source)
		return nil
	}

	ok := max(resp.Documents-resp.FailedDocuments, 0)
	summary := fmt.Sprintf("Indexed %d chunks from %d documents", resp.Indexed, ok)
	fmt.Fprintf(r.w, "%s %s\n", r.styles.Success.Render(summary), r.styles.Muted.Render("("+resp.Source+")"))

	if len(resp.Failures) == 0 {
		return nil
	}
	fmt.Fprintln(r.w, r.styles.Warning.Render(fmt.Sprintf(
		"%d documents failed, %d chunks skipped:", resp.FailedDocuments, resp.SkippedChunks)))
	for _, f := range resp.Failures {
		target := f.SourceFile
		if f.ChunkID != "" {
			target = f.ChunkID
		}
		fmt.Fprintf(r.w, "  %s %s\n", r.styles.Error.Render(target+":"), f.Error)
	}
	return nil
}

// Snippet returns the first n characters of s on a single line.
func Snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
