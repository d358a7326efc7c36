package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/voicerelay/internal/config"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the document knowledge base",
	}

	cmd.AddCommand(newKBStoreCmd())
	cmd.AddCommand(newKBListCmd())
	cmd.AddCommand(newKBDeleteCmd())
	cmd.AddCommand(newKBSearchCmd())
	return cmd
}

func newKBStoreCmd() *cobra.Command {
	var name, docType string

	cmd := &cobra.Command{
		Use:   "store <file>",
		Short: "Store a document, replacing any document with the same name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			if docType == "" {
				docType = docTypeFor(args[0])
			}

			return withApp(cmd, func(ctx context.Context, _ config.Config, a *app) error {
				kb, err := a.knowledge()
				if err != nil {
					return err
				}
				chunks, err := kb.Store(ctx, name, string(content), docType)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%d chunks)\n", name, chunks)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "document name (default: file name)")
	cmd.Flags().StringVar(&docType, "type", "", "document type (default: from extension)")
	return cmd
}

func docTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	default:
		return "text"
	}
}

func newKBListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, _ config.Config, a *app) error {
				kb, err := a.knowledge()
				if err != nil {
					return err
				}
				docs, err := kb.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(docs) == 0 {
					fmt.Fprintln(out, "No documents.")
					return nil
				}
				for _, d := range docs {
					fmt.Fprintf(out, "%-32s %-10s %4d chunks  %s\n",
						d.Name, d.Type, d.Chunks, d.AddedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newKBDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, _ config.Config, a *app) error {
				kb, err := a.knowledge()
				if err != nil {
					return err
				}
				chunks, err := kb.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if chunks == 0 {
					return fmt.Errorf("document %q not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d chunks)\n", args[0], chunks)
				return nil
			})
		},
	}
}

func newKBSearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base the way a voice session would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, _ config.Config, a *app) error {
				kb, err := a.knowledge()
				if err != nil {
					return err
				}
				result, err := kb.Search(ctx, strings.Join(args, " "), k)
				if err != nil {
					return err
				}
				if result == "" {
					result = "No matches."
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(result))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 3, "number of chunks")
	return cmd
}
