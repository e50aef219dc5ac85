package prompts

// SemanticChunkingData is rendered into the semantic_chunking prompt.
type SemanticChunkingData struct {
	Text      string
	MinSize   int
	MaxSize   int
	Delimiter string
}

// QueryData is rendered into the query analysis and rewrite prompts.
type QueryData struct {
	Query  string
	Domain string
	// Hint is the generic rewrite produced by the analysis step, if any.
	Hint string
}

var defaultPrompts = map[string]string{
	SemanticChunking: `You split documents into chunks for a semantic search index.

Rules:
1. Never split a paragraph in the middle.
2. Keep related paragraphs together in the same chunk.
3. Each chunk should be between {{.MinSize}} and {{.MaxSize}} characters long.
4. Prefer natural topic boundaries such as headings or a change of subject.
5. Each chunk must make sense on its own.

Return the original text only, with the chunks separated by a line containing exactly {{.Delimiter}}
Do not add explanations, numbering, titles or summaries.

Document:
{{.Text}}`,

	QueryAnalysis: `You classify user queries for a retrieval system over {{.Domain}}.

Categories:
- Factual: asks for a fact, definition, quantity or explanation that the documents can answer, e.g. "What is chocolate?"
- SmallTalk: greetings, thanks, jokes or other conversation that needs no document lookup, e.g. "Hi, how are you?"
- Ambiguous: the intent is unclear or the query could refer to several topics and needs disambiguation, e.g. "Tell me about it"

Also rewrite the query as a self-contained search query and explain your classification in one sentence.

Respond with a single JSON object and nothing else:
{"type": "Factual" | "SmallTalk" | "Ambiguous", "rewrittenQuery": "...", "reasoning": "..."}

Query: {{.Query}}`,

	RewriteFactual: `Rewrite the factual question below into a precise search query over {{.Domain}}.
Name the specific facts it asks for (definitions, names, quantities, dates, processes) as explicit search terms.
Return only the rewritten query on a single line.

Question: {{.Query}}{{if .Hint}}
Draft rewrite: {{.Hint}}{{end}}`,

	RewriteAmbiguous: `The question below is ambiguous. Rewrite it into one search query that resolves the ambiguity using this domain context: {{.Domain}}.
Keep the user's intent and prefer the most likely interpretation within the domain.
Return only the rewritten query on a single line.

Question: {{.Query}}{{if .Hint}}
Draft rewrite: {{.Hint}}{{end}}`,
}
