//go:build e2e

package e2e

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragkit/internal/api/handlers"
	"github.com/cloo-solutions/ragkit/internal/cli"
)

var corpus = map[string]string{
	"chocolate.md": "Chocolate is made from cocoa. Dark chocolate is bitter.",
	"coffee.txt":   "Coffee beans are roasted before brewing coffee.",
	"tea/green.md": "Green tea is steeped briefly. Tea leaves are picked by hand.",
	"notes.bin":    "chocolate coffee tea",
}

func health(t *testing.T, env *E2ETestEnv) handlers.HealthResponse {
	t.Helper()
	resp, err := env.Get("/health")
	require.NoError(t, err)
	var h handlers.HealthResponse
	require.NoError(t, json.Unmarshal(resp.Data, &h))
	return h
}

func TestE2E_IngestAndSearch(t *testing.T) {
	env := SetupE2EEnv(t, corpus)
	defer env.Cleanup()

	assert.Equal(t, 0, health(t, env).Records)

	var ingest handlers.IngestResponse
	require.NoError(t, env.PostInto("/ingest", nil, &ingest))
	assert.Equal(t, "s3://"+testBucket+"/", ingest.Source)
	assert.Equal(t, 3, ingest.Documents)
	assert.Equal(t, 3, ingest.Indexed)
	assert.Empty(t, ingest.Failures)

	assert.Equal(t, 3, health(t, env).Records)

	t.Run("search ranks the matching document first", func(t *testing.T) {
		var search handlers.SearchResponse
		require.NoError(t, env.PostInto("/search", handlers.SearchRequest{Query: "dark chocolate", Limit: 2}, &search))
		require.Len(t, search.Results, 2)
		assert.Equal(t, "chocolate.md", search.Results[0].SourceFile)
		assert.Equal(t, "chocolate.md_chunk_0", search.Results[0].ID)
		assert.GreaterOrEqual(t, search.Results[0].Score, search.Results[1].Score)
	})

	t.Run("nested keys keep their path", func(t *testing.T) {
		var search handlers.SearchResponse
		require.NoError(t, env.PostInto("/search", handlers.SearchRequest{Query: "tea", Limit: 1}, &search))
		require.Len(t, search.Results, 1)
		assert.Equal(t, "tea/green.md", search.Results[0].SourceFile)
	})

	t.Run("blank query returns no results", func(t *testing.T) {
		var search handlers.SearchResponse
		require.NoError(t, env.PostInto("/search", handlers.SearchRequest{Query: "   "}, &search))
		assert.Empty(t, search.Results)
	})

	t.Run("re-ingest replaces records", func(t *testing.T) {
		var again handlers.IngestResponse
		require.NoError(t, env.PostInto("/ingest", handlers.IngestRequest{Documents: []string{"coffee.txt"}}, &again))
		assert.Equal(t, 1, again.Documents)
		assert.Equal(t, 1, again.Indexed)
		assert.Equal(t, 3, health(t, env).Records)
	})
}

func TestE2E_RetrieveAndAnalyze(t *testing.T) {
	env := SetupE2EEnv(t, corpus)
	defer env.Cleanup()

	require.NoError(t, env.PostInto("/ingest", nil, &handlers.IngestResponse{}))

	var retrieve handlers.RetrieveResponse
	require.NoError(t, env.PostInto("/retrieve", handlers.SearchRequest{Query: "how is coffee brewed"}, &retrieve))
	require.NotNil(t, retrieve.Analysis)
	assert.Equal(t, "Factual", retrieve.Analysis.Type)
	assert.Equal(t, "how is coffee brewed", retrieve.RewrittenQuery)
	require.NotEmpty(t, retrieve.Results)
	assert.Equal(t, "coffee.txt", retrieve.Results[0].SourceFile)

	var analysis handlers.AnalysisResponse
	require.NoError(t, env.PostInto("/analyze", handlers.AnalyzeRequest{Query: "is tea hot"}, &analysis))
	assert.Equal(t, "Factual", analysis.Type)

	_, err := env.Post("/retrieve", handlers.SearchRequest{Query: ""})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}

func TestE2E_RestartClearsIndex(t *testing.T) {
	env := SetupE2EEnv(t, corpus)
	defer env.Cleanup()

	require.NoError(t, env.PostInto("/ingest", nil, &handlers.IngestResponse{}))
	assert.Equal(t, 3, health(t, env).Records)

	restarted, err := cli.BuildPipeline(env.Ctx, env.Config(), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	defer restarted.Close()

	n, err := restarted.Service.Count(env.Ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestE2E_CLIRemote(t *testing.T) {
	env := SetupE2EEnv(t, corpus)
	defer env.Cleanup()
	env.BuildCLI()

	out, err := env.RunCLI("ingest")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Indexed 3 chunks from 3 documents")

	out, err = env.RunCLI("search", "coffee", "beans", "--output")
	require.NoError(t, err, out)
	var search handlers.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &search))
	require.NotEmpty(t, search.Results)
	assert.Equal(t, "coffee.txt", search.Results[0].SourceFile)

	out, err = env.RunCLI("retrieve", "why", "is", "chocolate", "bitter")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Type: Factual")
	assert.True(t, strings.Contains(out, "chocolate.md"), out)
}
