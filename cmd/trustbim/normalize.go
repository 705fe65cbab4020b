package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/trustbim/internal/application/handlers"
)

func newNormalizeCmd() *cobra.Command {
	var class, unit string

	cmd := &cobra.Command{
		Use:   "normalize <property> <value>",
		Short: "Convert one property value to its canonical unit",
		Long:  "Normalizes a single value the way a run would and checks it against the range in scope.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(args[0], args[1], class, unit)
		},
	}

	cmd.Flags().StringVarP(&class, "class", "c", "", "Canonical class the property belongs to")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "Declared unit of the value")

	return cmd
}

func runNormalize(property, value, class, unit string) error {
	return withDeps(func(d *Deps) error {
		cat, err := d.LoadCatalog()
		if err != nil {
			return err
		}

		res, err := handlers.Normalize(cat, class, property, value, unit)
		if err != nil {
			return err
		}

		displayNormalized(res)
		return nil
	})
}

func displayNormalized(res *handlers.NormalizeResult) {
	r := res.Result
	switch {
	case r.Value != nil:
		fmt.Printf("%s = %g %s\n", res.Property, *r.Value, r.Unit)
	default:
		fmt.Printf("%s = %q\n", res.Property, r.Text)
	}
	if r.Quantity != "" {
		fmt.Printf("  Quantity: %s\n", r.Quantity)
	}
	if r.Assumed {
		fmt.Println("  Unit: none given, taken as the base unit")
	}
	if r.Note != "" {
		fmt.Printf("  Note: %s\n", r.Note)
	}
	if res.Range != nil {
		status := "ok"
		if res.Violated {
			status = "OUT OF RANGE"
		}
		fmt.Printf("  Range: %s (%s) %s\n", formatBounds(res.Range.Min, res.Range.Max), res.Range.Scope, status)
	}
}
