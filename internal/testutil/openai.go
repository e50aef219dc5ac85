package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// FakeOpenAI serves the embeddings and chat completions endpoints the
// pipeline uses. Embeddings count topic keywords, one axis per keyword, so
// texts about the same topic rank together.
type FakeOpenAI struct {
	Server *httptest.Server
	// Keywords defines the embedding axes.
	Keywords []string
	// Reply answers a chat prompt. The default classifies every query as
	// Factual and echoes the question for rewrites.
	Reply func(prompt string) string

	embeddings  atomic.Int64
	completions atomic.Int64
}

// NewFakeOpenAI starts a fake server closed at test cleanup.
func NewFakeOpenAI(t *testing.T, keywords ...string) *FakeOpenAI {
	t.Helper()
	if len(keywords) == 0 {
		keywords = []string{"chocolate", "coffee", "tea"}
	}
	f := &FakeOpenAI{Keywords: keywords, Reply: DefaultReply}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the value for the client's base URL setting.
func (f *FakeOpenAI) BaseURL() string {
	return f.Server.URL + "/v1"
}

// Dimensions is the embedding length the server returns.
func (f *FakeOpenAI) Dimensions() int {
	return len(f.Keywords)
}

func (f *FakeOpenAI) EmbeddingCalls() int64 {
	return f.embeddings.Load()
}

func (f *FakeOpenAI) CompletionCalls() int64 {
	return f.completions.Load()
}

// Embed returns the vector the server produces for text.
func (f *FakeOpenAI) Embed(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, len(f.Keywords))
	for i, kw := range f.Keywords {
		v[i] = 0.01 + float32(strings.Count(text, kw))
	}
	return v
}

func (f *FakeOpenAI) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/embeddings":
		f.embeddings.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) == 0 {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": f.Embed(in)}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "fake"})
	case "/v1/chat/completions":
		f.completions.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		reply := f.Reply(req.Messages[len(req.Messages)-1].Content)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "fake",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	default:
		http.NotFound(w, r)
	}
}

// DefaultReply classifies queries as Factual and rewrites a question to
// itself.
func DefaultReply(prompt string) string {
	if q, ok := lineAfter(prompt, "Query: "); ok {
		return fmt.Sprintf(`{"type":"Factual","rewrittenQuery":%q,"reasoning":"asks for a fact"}`, q)
	}
	if q, ok := lineAfter(prompt, "Question: "); ok {
		return q
	}
	return prompt
}

func lineAfter(text, marker string) (string, bool) {
	i := strings.LastIndex(text, marker)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}
