package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the specforge CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "specforge",
		Short:         "Generate OpenAPI descriptors, client SDKs and appendices from API projects",
		Long:          "specforge turns a project document (requests, examples and schemas) into an OpenAPI descriptor, client SDK source and a field appendix, and serves the same generators over HTTP and MCP.",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	flagErr := func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	}
	cmd.SetFlagErrorFunc(flagErr)

	for _, sub := range []*cobra.Command{
		newGenerateCmd(),
		newSchemaCmd(),
		newInitCmd(),
		newImportCmd(),
		newServeCmd(),
		newMCPCmd(),
	} {
		sub.SetFlagErrorFunc(flagErr)
		cmd.AddCommand(sub)
	}

	return cmd
}
