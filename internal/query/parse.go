package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragkit/internal/domain"
)

// Field names of the analysis object, matched case-insensitively.
const (
	fieldType           = "type"
	fieldRewrittenQuery = "rewrittenQuery"
	fieldReasoning      = "reasoning"
)

// ParseAnalysis reads a model reply into a QueryAnalysis. It accepts a JSON
// object (optionally fenced or surrounded by prose), "field: value" lines, or
// a bare classification label. A missing rewritten query falls back to
// query; a missing or unknown type is an error.
func ParseAnalysis(reply, query string) (*domain.QueryAnalysis, error) {
	body := stripFences(reply)
	if body == "" {
		return nil, parseError("empty reply", nil)
	}

	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		return parseJSON(body[start:end+1], query)
	}

	if fields := parseLines(body); fields != nil {
		return buildAnalysis(fields, query)
	}

	if t, err := domain.ParseQueryType(trimLabel(body)); err == nil {
		return &domain.QueryAnalysis{Type: t, RewrittenQuery: query}, nil
	}

	return nil, parseError(fmt.Sprintf("unrecognised reply %q", truncate(body, 80)), nil)
}

func parseJSON(object, query string) (*domain.QueryAnalysis, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &raw); err != nil {
		return nil, parseError("invalid JSON object", err)
	}

	fields := make(map[string]string, 3)
	for key, value := range raw {
		name, ok := canonicalField(key)
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, parseError(fmt.Sprintf("field %q is not a string", key), err)
		}
		fields[name] = s
	}
	return buildAnalysis(fields, query)
}

// parseLines returns nil unless at least the type field is present.
func parseLines(body string) map[string]string {
	fields := make(map[string]string, 3)
	for _, line := range strings.Split(body, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name, ok := canonicalField(strings.Trim(key, " \t-*#`\"'"))
		if !ok {
			continue
		}
		fields[name] = strings.Trim(strings.TrimSpace(value), "*`\"'")
	}
	if _, ok := fields[fieldType]; !ok {
		return nil
	}
	return fields
}

func buildAnalysis(fields map[string]string, query string) (*domain.QueryAnalysis, error) {
	label, ok := fields[fieldType]
	if !ok {
		return nil, parseError("missing type field", nil)
	}
	t, err := domain.ParseQueryType(label)
	if err != nil {
		return nil, parseError(fmt.Sprintf("unknown query type %q", label), err)
	}

	rewritten := strings.TrimSpace(fields[fieldRewrittenQuery])
	if rewritten == "" {
		rewritten = query
	}

	return &domain.QueryAnalysis{
		Type:           t,
		RewrittenQuery: rewritten,
		Reasoning:      strings.TrimSpace(fields[fieldReasoning]),
	}, nil
}

func canonicalField(key string) (string, bool) {
	for _, name := range []string{fieldType, fieldRewrittenQuery, fieldReasoning} {
		if strings.EqualFold(key, name) {
			return name, true
		}
	}
	return "", false
}

// stripFences removes a surrounding Markdown code fence and its language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func trimLabel(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`*.!")
}

// cleanRewrite reduces a rewrite reply to its first non-empty line.
func cleanRewrite(reply string) string {
	body := stripFences(reply)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok && isRewriteLabel(key) {
			line = strings.TrimSpace(value)
		}
		return strings.Trim(line, "\"'`")
	}
	return ""
}

func isRewriteLabel(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "rewritten query", "rewrittenquery", "query", "search query":
		return true
	}
	return false
}

func parseError(message string, cause error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeQueryAnalysisParse, message, cause)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
