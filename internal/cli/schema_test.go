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
	root := &cobra.Command{Use: "ragdesk", Short: "root"}
	root.PersistentFlags().Bool("output", false, "Output as JSON")
	AddHelpJSONFlag(root)

	docs := &cobra.Command{Use: "docs", Aliases: []string{"documents"}, Short: "Documents"}
	upload := &cobra.Command{Use: "upload <file>...", Short: "Upload", Run: func(*cobra.Command, []string) {}}
	upload.Flags().Bool("policy", false, "Company policy")
	upload.Flags().String("name", "", "Display name")
	_ = upload.MarkFlagRequired("name")
	docs.AddCommand(upload)

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}

	root.AddCommand(docs, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(testTree())

	assert.Equal(t, "ragdesk", schema.Name)
	require.Len(t, schema.Subcommands, 1, "hidden and help commands are skipped")

	docs := schema.Subcommands[0]
	assert.Equal(t, "ragdesk docs", docs.Path)
	assert.Equal(t, []string{"documents"}, docs.Aliases)

	require.Len(t, docs.Subcommands, 1)
	upload := docs.Subcommands[0]

	byName := map[string]FlagSchema{}
	for _, f := range upload.Flags {
		byName[f.Name] = f
	}
	assert.True(t, byName["name"].Required)
	assert.False(t, byName["policy"].Required)
	assert.True(t, byName["output"].Inherited)
	assert.NotContains(t, byName, helpJSONFlag)

	assert.False(t, upload.Flags[0].Inherited, "local flags come first")
	assert.True(t, upload.Flags[len(upload.Flags)-1].Inherited)
}

func TestFindCommand(t *testing.T) {
	root := testTree()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"root", nil, "ragdesk"},
		{"by name", []string{"docs", "upload"}, "ragdesk docs upload"},
		{"by alias", []string{"documents"}, "ragdesk docs"},
		{"stops at unknown word", []string{"docs", "file.pdf"}, "ragdesk docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindCommand(root, tt.args).CommandPath())
		})
	}
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testTree()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ragdesk", decoded.Name)
}
