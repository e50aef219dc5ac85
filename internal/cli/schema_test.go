package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "ragkit", Short: "root"}
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	AddHelpJSONFlag(root)

	search := &cobra.Command{Use: "search <query>", Short: "Search the index", Run: func(*cobra.Command, []string) {}}
	search.Flags().IntP("limit", "n", 0, "Maximum number of results")
	root.AddCommand(search)

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testTree())

	assert.Equal(t, "ragkit", schema.Name)
	require.Len(t, schema.Subcommands, 1)

	search := schema.Subcommands[0]
	assert.Equal(t, "search", search.Name)
	assert.Equal(t, "<query>", search.Args)

	names := map[string]FlagSchema{}
	for _, f := range search.Flags {
		names[f.Name] = f
	}
	assert.Equal(t, "n", names["limit"].Shorthand)
	assert.Equal(t, "int", names["limit"].Type)
	assert.False(t, names["limit"].Inherited)
	assert.True(t, names["output"].Inherited)
	assert.NotContains(t, names, "help-json")
}

func TestCheckHelpJSON_WritesTargetSchema(t *testing.T) {
	var buf bytes.Buffer

	handled, err := CheckHelpJSON(&buf, testTree(), []string{"search", "--help-json"})
	require.NoError(t, err)
	assert.True(t, handled)

	var schema CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &schema))
	assert.Equal(t, "search", schema.Name)
	assert.Equal(t, "Search the index", schema.Description)
}

func TestCheckHelpJSON_NotRequested(t *testing.T) {
	var buf bytes.Buffer

	handled, err := CheckHelpJSON(&buf, testTree(), []string{"search", "cocoa"})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, buf.String())
}
