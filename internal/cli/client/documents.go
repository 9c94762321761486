package client

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type documentResponse struct {
	ID               string  `json:"id"`
	Filename         string  `json:"filename"`
	OriginalFilename string  `json:"original_filename"`
	FileType         string  `json:"file_type"`
	FileSize         int64   `json:"file_size"`
	IsCompanyPolicy  bool    `json:"is_company_policy"`
	UploadedBy       string  `json:"uploaded_by"`
	Status           string  `json:"status"`
	Error            string  `json:"error,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        *string `json:"updated_at"`
}

type documentListResponse struct {
	Items      []documentResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

// DocsCmd groups the document commands.
func DocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Upload and manage documents",
	}

	cmd.AddCommand(docsUploadCmd())
	cmd.AddCommand(docsListCmd())
	cmd.AddCommand(docsGetCmd())
	cmd.AddCommand(docsDownloadCmd())
	cmd.AddCommand(docsDeleteCmd())

	return cmd
}

func docsUploadCmd() *cobra.Command {
	var policy, quiet bool

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents for ingestion",
		Long:  "Upload PDF, DOCX or TXT files. Ingestion runs in the background; check progress with 'ragdesk docs get'.",
		Example: `  ragdesk docs upload handbook.pdf --policy
  ragdesk docs upload notes/*.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var uploaded []documentResponse
			for _, path := range args {
				var progress ProgressFunc
				if !quiet && !outputJSON(cmd) {
					name := filepath.Base(path)
					progress = func(current, total int64) {
						if total > 0 {
							fmt.Fprintf(cmd.ErrOrStderr(), "\r%s %3d%%", name, current*100/total)
						}
					}
				}

				resp, err := api.UploadDocument(cmd.Context(), path, policy, progress)
				if progress != nil {
					fmt.Fprintln(cmd.ErrOrStderr())
				}
				if err != nil {
					return fmt.Errorf("upload %s: %w", path, err)
				}

				var doc documentResponse
				if err := resp.Decode(&doc); err != nil {
					return err
				}
				uploaded = append(uploaded, doc)

				if !outputJSON(cmd) {
					fmt.Fprintf(out, "%s  %s  %s\n", doc.ID, doc.OriginalFilename, doc.Status)
				}
			}

			if outputJSON(cmd) {
				return writeJSON(out, uploaded)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&policy, "policy", false, "Mark the documents as company policy")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide upload progress")

	return cmd
}

func docsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			path := "/documents"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := api.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}

			var list documentListResponse
			if err := resp.Decode(&list); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, list)
			}

			if len(list.Items) == 0 {
				fmt.Fprintln(out, "No documents found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILENAME\tTYPE\tSIZE\tPOLICY\tSTATUS\tCREATED")
			for _, d := range list.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\t%s\n", d.ID, d.OriginalFilename, d.FileType, d.FileSize, d.IsCompanyPolicy, d.Status, d.CreatedAt)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if list.HasMore && list.NextCursor != "" {
				fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", list.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous listing")

	return cmd
}

func docsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a document and its ingestion status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/documents/"+url.PathEscape(args[0]))
			if err != nil {
				if IsStatus(err, http.StatusNotFound) {
					return fmt.Errorf("document %s not found", args[0])
				}
				return err
			}

			var doc documentResponse
			if err := resp.Decode(&doc); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON(cmd) {
				return writeJSON(out, doc)
			}

			fmt.Fprintf(out, "ID:       %s\n", doc.ID)
			fmt.Fprintf(out, "File:     %s (%s, %d bytes)\n", doc.OriginalFilename, doc.FileType, doc.FileSize)
			fmt.Fprintf(out, "Policy:   %t\n", doc.IsCompanyPolicy)
			fmt.Fprintf(out, "Status:   %s\n", doc.Status)
			if doc.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", doc.Error)
			}
			fmt.Fprintf(out, "Created:  %s\n", doc.CreatedAt)
			if doc.UpdatedAt != nil {
				fmt.Fprintf(out, "Updated:  %s\n", *doc.UpdatedAt)
			}
			return nil
		},
	}
}

func docsDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the original upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			id := url.PathEscape(args[0])

			target := output
			if target == "" {
				resp, err := api.Get(ctx, "/documents/"+id)
				if err != nil {
					return err
				}
				var doc documentResponse
				if err := resp.Decode(&doc); err != nil {
					return err
				}
				target = filepath.Base(doc.OriginalFilename)
			}

			resp, err := api.Get(ctx, "/documents/"+id+"/download")
			if err != nil {
				if IsStatus(err, http.StatusNotImplemented) {
					return fmt.Errorf("the server keeps no copy of uploaded files")
				}
				return err
			}

			var link struct {
				DownloadURL string `json:"download_url"`
			}
			if err := resp.Decode(&link); err != nil {
				return err
			}

			if err := api.DownloadFile(ctx, link.DownloadURL, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "", "Output path (defaults to the original filename)")

	return cmd
}

func docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete documents and their indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			for _, id := range args {
				if _, err := api.Delete(cmd.Context(), "/documents/"+url.PathEscape(id)); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}
