package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type chatRequest struct {
	Query            string `json:"query"`
	UseCompanyPolicy bool   `json:"use_company_policy"`
	DocumentID       string `json:"document_id,omitempty"`
}

type chatResponse struct {
	Answer                string   `json:"answer"`
	SourceDocuments       []string `json:"source_documents"`
	ReturnSourceDocuments bool     `json:"return_source_documents"`
}

// AskCmd sends a question to the chat endpoint.
func AskCmd() *cobra.Command {
	var (
		policy     bool
		documentID string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your documents",
		Long: `Ask a question answered from your uploaded documents.

With --policy the answer draws on company policy documents instead.
With --document the search is limited to one document.`,
		Example: `  ragdesk ask "How many vacation days do I get?" --policy
  ragdesk ask "Summarize the onboarding checklist" --document 3f1c...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			resp, err := api.Post(cmd.Context(), "/chat", chatRequest{
				Query:            strings.Join(args, " "),
				UseCompanyPolicy: policy,
				DocumentID:       documentID,
			})
			if err != nil {
				return err
			}

			var answer chatResponse
			if err := resp.Decode(&answer); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, answer)
			}

			fmt.Fprintln(out, answer.Answer)
			if len(answer.SourceDocuments) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range answer.SourceDocuments {
					fmt.Fprintf(out, "  - %s\n", src)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&policy, "policy", false, "Answer from company policy documents")
	cmd.Flags().StringVar(&documentID, "document", "", "Restrict the search to one document id")

	return cmd
}
