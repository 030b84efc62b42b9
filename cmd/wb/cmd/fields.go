package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/domain"
)

var fieldDescription string

// fieldsCmd manages the per-project custom field definitions.
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Manage custom card fields",
	Long: `Manage the custom fields shown on every card of this repository.

Fields are defined once per project and hold free-form text per card,
for things like priority, reviewer, or ticket link.

Examples:
  wb fields list
  wb fields add priority --description "urgency, one of low/medium/high"
  wb fields remove priority`,
	RunE: runFieldsList,
}

var fieldsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List field definitions",
	RunE:  runFieldsList,
}

var fieldsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a field definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldsAdd,
}

var fieldsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a field definition and its values",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldsRemove,
}

func init() {
	fieldsAddCmd.Flags().StringVar(&fieldDescription, "description", "", "what the field holds, shown as a hint when editing")
	fieldsCmd.AddCommand(fieldsListCmd)
	fieldsCmd.AddCommand(fieldsAddCmd)
	fieldsCmd.AddCommand(fieldsRemoveCmd)
}

func runFieldsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	defs, err := application.Store().ListFieldDefs(ctx, application.Project().ID)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Println("No fields defined. Add one with: wb fields add <name>")
		return nil
	}
	for _, def := range defs {
		if def.Description != "" {
			fmt.Printf("%s\t%s\n", def.Name, def.Description)
		} else {
			fmt.Println(def.Name)
		}
	}
	return nil
}

func runFieldsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	def := &domain.FieldDefinition{
		ProjectID:   application.Project().ID,
		Name:        args[0],
		Description: fieldDescription,
	}
	if err := application.Store().AddFieldDef(ctx, def); err != nil {
		return err
	}
	fmt.Printf("Added field %s\n", def.Name)
	return nil
}

func runFieldsRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	if err := application.Store().RemoveFieldDef(ctx, application.Project().ID, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed field %s\n", args[0])
	return nil
}
