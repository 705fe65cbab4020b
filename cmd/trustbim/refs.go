package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/trustbim/internal/application/handlers"
)

func newRefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Manage the reference documents used by the class assistant",
	}

	cmd.AddCommand(
		newRefsIndexCmd(),
		newRefsSearchCmd(),
	)

	return cmd
}

func newRefsIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>",
		Short: "Embed and store reference documents",
		Long:  "Reads a JSON array or JSON lines file of {id, title, source, snippet, classes} documents and stores them in Qdrant.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withReferencesHandler(func(_ *Deps, h *handlers.ReferencesHandler) error {
				res, err := h.Index(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Indexed %d of %d references from %s\n", res.Indexed, res.Read, res.FilePath)
				return nil
			})
		},
	}
}

func newRefsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find the references nearest to a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withReferencesHandler(func(_ *Deps, h *handlers.ReferencesHandler) error {
				refs, err := h.Search(ctx, strings.Join(args, " "), limit)
				if err != nil {
					return err
				}

				if len(refs) == 0 {
					fmt.Println("No references found.")
					return nil
				}

				fmt.Printf("Found %d references:\n\n", len(refs))
				for i, ref := range refs {
					fmt.Printf("%d. [%.3f] %s  %s\n", i+1, ref.Score, ref.ID, ref.Title)
					if ref.Snippet != "" {
						fmt.Printf("   %s\n", ref.Snippet)
					}
					if ref.Source != "" {
						fmt.Printf("   Source: %s\n", ref.Source)
					}
					if len(ref.Classes) > 0 {
						fmt.Printf("   Classes: %s\n", strings.Join(ref.Classes, ", "))
					}
					fmt.Println()
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultSearchLimit, "Maximum number of references")

	return cmd
}
