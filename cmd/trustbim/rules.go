package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/trustbim/internal/application/handlers"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the rule catalog",
	}

	cmd.AddCommand(
		newRulesCheckCmd(),
		newRulesShowCmd(),
	)

	return cmd
}

func newRulesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Compile the rule catalog and report what it contains",
		Long:  "Loads every rule file, compiles the predicates and reports errors with their file and rule id.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRulesCheck,
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	return withDeps(func(d *Deps) error {
		path := d.RulesPath()
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no rule catalog configured")
		}

		_, result, err := handlers.CheckRules(path)
		if err != nil {
			return err
		}

		fmt.Println("Rule catalog OK")
		fmt.Printf("  Sources: %s\n", strings.Join(result.Sources, ", "))
		fmt.Printf("  Digest:  %s\n", result.Digest)
		s := result.Summary
		fmt.Printf("  Classes: %d (%d mapped source classes)\n", s.Classes, s.ClassMappings)
		fmt.Printf("  Keyword rules: %d overrides, %d consistency\n", s.KeywordOverrides, s.KeywordConsistency)
		fmt.Printf("  Required properties: %d\n", s.RequiredProperties)
		fmt.Printf("  Ranges: %d global, %d class\n", s.GlobalRanges, s.ClassRanges)
		fmt.Printf("  Neighbor rules: %d\n", s.NeighborRules)
		fmt.Printf("  Incoherence rules: %d (%d exceptions)\n", s.IncoherenceRules, s.Exceptions)
		return nil
	})
}

func newRulesShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <class>",
		Short: "Show the rules that apply to a canonical class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesShow(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

func runRulesShow(class string, asJSON bool) error {
	return withDeps(func(d *Deps) error {
		cat, err := d.LoadCatalog()
		if err != nil {
			return err
		}

		rules, err := handlers.ShowClass(cat, class)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rules)
		}

		displayClassRules(rules)
		return nil
	})
}

func displayClassRules(r *handlers.ClassRules) {
	fmt.Printf("Class: %s\n", r.Class)
	if r.Tier != "" {
		fmt.Printf("  Tier: %s\n", r.Tier)
	}
	if len(r.Required) > 0 {
		fmt.Printf("  Required: %s\n", strings.Join(r.Required, ", "))
	}
	if len(r.Ranges) > 0 {
		fmt.Println("  Ranges:")
		for _, rv := range r.Ranges {
			fmt.Printf("    %s: %s (%s)\n", rv.Property, formatBounds(rv.Min, rv.Max), rv.Scope)
		}
	}
	for prop, unit := range r.UnitOverrides {
		fmt.Printf("  Unit override: %s in %s\n", prop, unit)
	}
	if r.Keywords != nil {
		if len(r.Keywords.MustContainAny) > 0 {
			fmt.Printf("  Name must contain one of: %s\n", strings.Join(r.Keywords.MustContainAny, ", "))
		}
		if len(r.Keywords.MustContainNone) > 0 {
			fmt.Printf("  Name must not contain: %s\n", strings.Join(r.Keywords.MustContainNone, ", "))
		}
	}
	for _, n := range r.Neighbors {
		fmt.Printf("  Needs %d %s neighbor(s) of class %s\n", n.Min, n.Relation, strings.Join(n.Classes, " | "))
	}
	if ids := r.IncoherenceIDs(); len(ids) > 0 {
		fmt.Printf("  Incoherence rules: %s\n", strings.Join(ids, ", "))
	}
}

func formatBounds(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%g..%g", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf(">= %g", *lo)
	case hi != nil:
		return fmt.Sprintf("<= %g", *hi)
	default:
		return "unbounded"
	}
}
