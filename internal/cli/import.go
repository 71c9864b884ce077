package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/specforge/internal/importer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ImportConfig captures the options for the import command.
type ImportConfig struct {
	Input       string
	Out         string
	ResolveRefs bool
	Strict      bool
	Timeout     time.Duration
	Force       bool
}

var importRunner = runImport

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create a project from an existing OpenAPI or Swagger document",
		Long: "Read an OpenAPI 3.x or Swagger 2.0 document from a file or http(s) URL and write the equivalent project. " +
			"Importing a descriptor produced by generate gives back the project it was built from.",
		Example: strings.TrimSpace(`  specforge import --in openapi.yaml --out project.yaml
  specforge import --in https://api.example.com/swagger.json --strict`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &ImportConfig{}
			var err error
			if cfg.Input, err = cmd.Flags().GetString("in"); err != nil {
				return err
			}
			if cfg.Out, err = cmd.Flags().GetString("out"); err != nil {
				return err
			}
			if cfg.ResolveRefs, err = cmd.Flags().GetBool("resolve-refs"); err != nil {
				return err
			}
			if cfg.Strict, err = cmd.Flags().GetBool("strict"); err != nil {
				return err
			}
			if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
				return err
			}
			if cfg.Force, err = cmd.Flags().GetBool("force"); err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Input) == "" {
				return newUsageError("import: --in is required")
			}
			return importRunner(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("in", "", "OpenAPI/Swagger file path or http(s) URL")
	cmd.Flags().String("out", "", "Project file to write (defaults to stdout)")
	cmd.Flags().Bool("resolve-refs", false, "Load external $ref targets")
	cmd.Flags().Bool("strict", false, "Reject documents that fail OpenAPI validation")
	cmd.Flags().Duration("timeout", 10*time.Second, "HTTP timeout per request")
	cmd.Flags().Bool("force", false, "Overwrite an existing output file")
	return cmd
}

func runImport(ctx context.Context, cfg *ImportConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, err := importer.Load(ctx, cfg.Input,
		importer.WithHTTPTimeout(cfg.Timeout),
		importer.WithResolveRefs(cfg.ResolveRefs),
		importer.WithStrict(cfg.Strict),
	)
	if err != nil {
		return importError(err)
	}
	p, err := importer.ToProject(doc)
	if err != nil {
		return importError(err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("import: encode project: %w", err)
	}
	if strings.TrimSpace(cfg.Out) == "" || cfg.Out == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	abs, err := writeAtomic(cfg.Out, data, cfg.Force, "import")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Imported %q (%d requests) to %s\n", p.DisplayName(), len(p.Requests), abs)
	return nil
}

func importError(err error) error {
	var ie *importer.Error
	if !errors.As(err, &ie) {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "import: %s: %s", ie.Code, ie.Message)
	if ie.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", ie.Location)
	}
	if ie.JSONPointer != "" {
		fmt.Fprintf(&b, "\nPointer: %s", ie.JSONPointer)
	}
	if ie.Code == importer.NetworkError {
		b.WriteString("\nHint: check the URL and your network, or download the document and pass a file path.")
	}
	return newUsageError(b.String())
}
