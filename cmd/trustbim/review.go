package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/report"
)

func newReviewCmd() *cobra.Command {
	var (
		runID string
		asset string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Show the review queue of a stored run",
		Long:  "Lists the entities routed to human review, most urgent first. With --asset the flags of one entity are shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRunStore(ctx, func(_ *Deps, store ports.RunStore) error {
				handler := handlers.NewReviewHandler(store)
				if asset != "" {
					return runReviewAsset(cmd, handler, runID, asset)
				}
				return runReview(cmd, handler, runID, limit)
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: latest run)")
	cmd.Flags().StringVar(&asset, "asset", "", "Show the flags of one entity by local id")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultReviewLimit, "Maximum number of rows to display")

	return cmd
}

func runReview(cmd *cobra.Command, handler *handlers.ReviewHandler, runID string, limit int) error {
	res, err := handler.Queue(cmd.Context(), runID, limit)
	if errors.Is(err, handlers.ErrNoRuns) {
		fmt.Println("No runs found.")
		return nil
	}
	if err != nil {
		return err
	}

	if len(res.Rows) == 0 {
		fmt.Printf("Run %s: review queue is empty.\n", res.RunID)
		return nil
	}

	fmt.Printf("Run %s: %d entities to review\n\n", res.RunID, len(res.Rows))
	for _, row := range res.Rows {
		displayReviewRow(row)
	}
	return nil
}

func displayReviewRow(row report.ReviewRow) {
	fmt.Printf("%s  %s\n", row.LocalID, row.Name)
	class := row.CanonicalClass
	if class == "" {
		class = "(unmapped)"
	}
	fmt.Printf("  Class: %s", class)
	if row.Confidence != nil {
		fmt.Printf(" (confidence %.2f)", *row.Confidence)
	}
	fmt.Println()
	fmt.Printf("  Errors: %d  Warnings: %d\n", row.Errors, row.Warnings)
	if row.Reasons != "" {
		fmt.Printf("  Reasons: %s\n", row.Reasons)
	}
	fmt.Println()
}

func runReviewAsset(cmd *cobra.Command, handler *handlers.ReviewHandler, runID, localID string) error {
	flags, err := handler.Flags(cmd.Context(), runID, localID)
	if errors.Is(err, handlers.ErrNoRuns) {
		fmt.Println("No runs found.")
		return nil
	}
	if err != nil {
		return err
	}

	if len(flags) == 0 {
		fmt.Printf("No flags for %s.\n", localID)
		return nil
	}

	fmt.Printf("%d flags for %s:\n\n", len(flags), localID)
	for _, f := range flags {
		fmt.Printf("[%s] %s %s\n", f.Severity, f.Kind, f.Subject)
		fmt.Printf("  %s\n", f.Message)
		if f.RuleID != "" {
			fmt.Printf("  Rule: %s (%s)\n", f.RuleID, f.Stage)
		}
		if f.Observed != nil {
			fmt.Printf("  Observed: %g", *f.Observed)
			if f.Limit != nil {
				fmt.Printf("  Limit: %g", *f.Limit)
			}
			fmt.Println()
		}
		if f.Hint != "" {
			fmt.Printf("  Hint: %s\n", f.Hint)
		}
		fmt.Println()
	}
	return nil
}
