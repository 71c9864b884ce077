package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/specforge/internal/schema"
	"github.com/spf13/cobra"
)

// SchemaConfig captures the options for schema normalize.
type SchemaConfig struct {
	Input       string
	Format      string
	Builder     bool
	FromBuilder bool
}

var schemaRunner = runSchemaNormalize

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with schema definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	n := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize schema text written as JSON or YAML",
		Long: "Normalize schema text written as JSON or YAML into a canonical mapping of schema name to definition. " +
			"With --builder the structural builder view is printed instead.",
		Example: strings.TrimSpace(`  specforge schema normalize --in schemas.json --format yaml
  specforge schema normalize --in schemas.yaml --builder
  specforge schema normalize --in entries.json --from-builder --format json`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &SchemaConfig{}
			var err error
			if cfg.Input, err = cmd.Flags().GetString("in"); err != nil {
				return err
			}
			if cfg.Format, err = cmd.Flags().GetString("format"); err != nil {
				return err
			}
			if cfg.Builder, err = cmd.Flags().GetBool("builder"); err != nil {
				return err
			}
			if cfg.FromBuilder, err = cmd.Flags().GetBool("from-builder"); err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
			case "", "yaml", "yml", "json":
			default:
				return newUsageError(fmt.Sprintf("schema: unsupported --format %q (allowed: yaml, json)", cfg.Format))
			}
			return schemaRunner(cmd.Context(), cfg)
		},
	}
	n.Flags().String("in", "-", "Schema file to read; - reads stdin")
	n.Flags().String("format", "yaml", "Output format (yaml|json)")
	n.Flags().Bool("builder", false, "Print the builder entries as JSON")
	n.Flags().Bool("from-builder", false, "Read builder entries (JSON) instead of schema text")
	n.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
	})
	cmd.AddCommand(n)

	return cmd
}

func readInput(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runSchemaNormalize(ctx context.Context, cfg *SchemaConfig) error {
	_ = ctx

	data, err := readInput(cfg.Input)
	if err != nil {
		return newUsageError(fmt.Sprintf("schema: read input: %v", err))
	}

	var m *schema.Mapping
	if cfg.FromBuilder {
		var entries []schema.Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return newUsageError(fmt.Sprintf("schema: parse builder entries: %v", err))
		}
		m = schema.BuilderToMapping(entries)
	} else {
		m, err = schema.Normalize(string(data))
		if err != nil {
			var se *schema.Error
			if errors.As(err, &se) {
				return newUsageError(fmt.Sprintf("schema: %s (%s): %s", se.Code, se.Format, se.Message))
			}
			return err
		}
	}

	if cfg.Builder {
		out, err := json.MarshalIndent(schema.MappingToBuilder(m), "", "  ")
		if err != nil {
			return fmt.Errorf("schema: encode builder entries: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}

	text, err := schema.ToText(m, schema.ParseFormat(cfg.Format))
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, text)
	return nil
}
