package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
	embedder "github.com/ersonp/trustbim/internal/infrastructure/embedder/openai"
)

func newInitCmd() *cobra.Command {
	var withReferences bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a trustbim project",
		Long: "Creates a .trustbim directory with default configuration and writes the default rule catalog.\n" +
			"With --references the Qdrant collection for assist references is created as well.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, withReferences)
		},
	}

	cmd.Flags().BoolVar(&withReferences, "references", false, "Create the Qdrant reference collection")

	return cmd
}

func runInit(cmd *cobra.Command, withReferences bool) error {
	base, err := projectDir()
	if err != nil {
		return err
	}

	var manager ports.CollectionManager
	if withReferences {
		repo, err := newQdrant(config.Default())
		if err != nil {
			return err
		}
		defer repo.Close()
		manager = repo
	}

	result, err := handlers.NewInitHandler(manager, embedder.VectorSize).Handle(cmd.Context(), base)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	if result.RulesWritten {
		fmt.Printf("Created %s\n", result.RulesPath)
	} else {
		fmt.Printf("Kept existing rules %s\n", result.RulesPath)
	}
	if result.CollectionName != "" {
		fmt.Printf("Created Qdrant collection: %s\n", result.CollectionName)
	}
	fmt.Println("trustbim initialized successfully!")

	return nil
}
