package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/domain/ports"
)

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultRunsLimit, "Maximum number of runs to display")

	cmd.AddCommand(newRunsDeleteCmd())

	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	ctx := cmd.Context()

	return withRunStore(ctx, func(_ *Deps, store ports.RunStore) error {
		runs, err := handlers.NewReviewHandler(store).Runs(ctx, limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		fmt.Printf("Showing %d runs:\n\n", len(runs))
		for _, r := range runs {
			fmt.Printf("%s  %s  %s\n", r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Mode)
			fmt.Printf("  Assets: %d  Flags: %d  Review: %d\n", r.Assets, r.Flags, r.Review)
			if len(r.Inputs) > 0 {
				fmt.Printf("  Inputs: %s\n", strings.Join(r.Inputs, ", "))
			}
			fmt.Println()
		}
		return nil
	})
}

func newRunsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmAction(fmt.Sprintf("Delete run %s and all its tables?", args[0])) {
				fmt.Println("Cancelled.")
				return nil
			}
			ctx := cmd.Context()
			return withRunStore(ctx, func(_ *Deps, store ports.RunStore) error {
				if err := handlers.NewReviewHandler(store).Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted run %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func confirmAction(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)
	response, _ := reader.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
