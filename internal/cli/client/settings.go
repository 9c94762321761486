package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type settingsResponse struct {
	ChunkSize    int     `json:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	TopK         int     `json:"top_k"`
	ModelName    string  `json:"model_name"`
}

// SettingsCmd shows and updates the RAG settings.
func SettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change RAG settings",
	}

	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsSetCmd())

	return cmd
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/settings")
			if err != nil {
				return err
			}
			return printSettings(cmd, resp)
		},
	}
}

func settingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings (superuser only)",
		Long:  "Only the flags given are changed. Chunking changes apply to documents ingested afterwards.",
		Example: `  ragdesk settings set --temperature 0.2 --top-k 6
  ragdesk settings set --model claude-3-5-haiku-latest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("chunk-size") {
				v, _ := flags.GetInt("chunk-size")
				patch["chunk_size"] = v
			}
			if flags.Changed("chunk-overlap") {
				v, _ := flags.GetInt("chunk-overlap")
				patch["chunk_overlap"] = v
			}
			if flags.Changed("temperature") {
				v, _ := flags.GetFloat64("temperature")
				patch["temperature"] = v
			}
			if flags.Changed("top-p") {
				v, _ := flags.GetFloat64("top-p")
				patch["top_p"] = v
			}
			if flags.Changed("top-k") {
				v, _ := flags.GetInt("top-k")
				patch["top_k"] = v
			}
			if flags.Changed("model") {
				v, _ := flags.GetString("model")
				patch["model_name"] = v
			}
			if len(patch) == 0 {
				return errors.New("nothing to change: pass at least one setting flag")
			}

			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			resp, err := api.Put(cmd.Context(), "/settings", patch)
			if err != nil {
				return err
			}
			return printSettings(cmd, resp)
		},
	}

	cmd.Flags().Int("chunk-size", 0, "Characters per chunk (100-5000)")
	cmd.Flags().Int("chunk-overlap", 0, "Characters shared by consecutive chunks")
	cmd.Flags().Float64("temperature", 0, "Sampling temperature (0-2)")
	cmd.Flags().Float64("top-p", 0, "Nucleus sampling (0-1)")
	cmd.Flags().Int("top-k", 0, "Chunks retrieved per question")
	cmd.Flags().String("model", "", "Chat model name")

	return cmd
}

func printSettings(cmd *cobra.Command, resp *APIResponse) error {
	var s settingsResponse
	if err := resp.Decode(&s); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON(cmd) {
		return writeJSON(out, s)
	}

	fmt.Fprintf(out, "chunk_size:    %d\n", s.ChunkSize)
	fmt.Fprintf(out, "chunk_overlap: %d\n", s.ChunkOverlap)
	fmt.Fprintf(out, "temperature:   %g\n", s.Temperature)
	fmt.Fprintf(out, "top_p:         %g\n", s.TopP)
	fmt.Fprintf(out, "top_k:         %d\n", s.TopK)
	fmt.Fprintf(out, "model_name:    %s\n", s.ModelName)
	return nil
}
