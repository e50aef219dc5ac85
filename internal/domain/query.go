package domain

import "strings"

// QueryType classifies the intent of a user query.
type QueryType string

const (
	QueryTypeFactual   QueryType = "Factual"
	QueryTypeSmallTalk QueryType = "SmallTalk"
	QueryTypeAmbiguous QueryType = "Ambiguous"
)

// QueryTypes lists every classification in prompt order.
var QueryTypes = []QueryType{QueryTypeFactual, QueryTypeSmallTalk, QueryTypeAmbiguous}

// IsValid checks if the QueryType is one of the known classifications
func (t QueryType) IsValid() bool {
	switch t {
	case QueryTypeFactual, QueryTypeSmallTalk, QueryTypeAmbiguous:
		return true
	}
	return false
}

// ParseQueryType matches s case-insensitively against the known
// classifications. There is no fallback value.
func ParseQueryType(s string) (QueryType, error) {
	label := strings.TrimSpace(s)
	for _, t := range QueryTypes {
		if strings.EqualFold(label, string(t)) {
			return t, nil
		}
	}
	return "", ErrInvalidQueryType
}

// QueryAnalysis is the classification and generic rewrite of one query.
type QueryAnalysis struct {
	Type           QueryType
	RewrittenQuery string
	Reasoning      string
}
