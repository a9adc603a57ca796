package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/gosti/internal/hierarchy"
)

var (
	listTypesYAML    bool
	listTypesNoColor bool
)

var listTypesCmd = &cobra.Command{
	Use:   "list-types",
	Short: "List the type hierarchy defined in configuration",
	Long: `List-types prints the declared types as a tree, with the table each
type is stored in, whether queries through it are scoped, its merged casts
and the behaviors it overrides.

Example:
  gosti list-types --config gosti.yaml
  gosti list-types --yaml`,
	RunE: runListTypes,
}

func init() {
	listTypesCmd.Flags().BoolVar(&listTypesYAML, "yaml", false,
		"Print the hierarchy section as YAML instead of a tree")
	listTypesCmd.Flags().BoolVar(&listTypesNoColor, "no-color", false,
		"Disable colored output")
	rootCmd.AddCommand(listTypesCmd)
}

func runListTypes(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	if listTypesYAML {
		out, err := yaml.Marshal(env.cfg.Hierarchy)
		if err != nil {
			return fmt.Errorf("failed to encode hierarchy: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Types defined in %s:\n\n", GetConfigFile())
	opts := hierarchy.RenderOptions{Color: !listTypesNoColor}
	if err := env.tree.Render(out, env.resolver, opts); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d type(s)\n", env.tree.NodeCount())
	return nil
}
