package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	ConfigPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample project and specforge configuration file",
		Long: "Scaffold a sample project document describing a small users API, " +
			"plus a commented configuration file that documents the generate options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			cfgOut, err := cmd.Flags().GetString("config-out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{
				OutputPath: out,
				ConfigPath: cfgOut,
				Force:      force,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().String("out", "project.yaml", "Where to write the sample project")
	cmd.Flags().String("config-out", "", "Also write a sample config file to this path")
	cmd.Flags().Bool("force", false, "Overwrite the target files if they already exist")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "project.yaml"
	}
	if err := writeSample(out, sampleProjectYAML, cfg.Force, "project"); err != nil {
		return err
	}
	if c := strings.TrimSpace(cfg.ConfigPath); c != "" {
		return writeSample(c, sampleConfigYAML, cfg.Force, "config")
	}
	return nil
}

func writeSample(path, content string, force bool, what string) error {
	absPath, err := writeAtomic(path, []byte(strings.TrimSpace(content)+"\n"), force, "init")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote sample %s to %s\n", what, absPath)
	return nil
}

// writeAtomic places data at path through a temp file and rename. An
// existing regular file is only replaced with force.
func writeAtomic(path string, data []byte, force bool, cmd string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s: resolve output path: %w", cmd, err)
	}

	if st, err := os.Stat(absPath); err == nil && !force {
		if st.Mode().IsRegular() {
			return "", newUsageError(fmt.Sprintf("%s: %q already exists (use --force to overwrite)", cmd, absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", newUsageError(fmt.Sprintf("%s: cannot create parent directory: %v", cmd, err))
	}

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", newUsageError(fmt.Sprintf("%s: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", cmd, err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return "", newUsageError(fmt.Sprintf("%s: cannot place file at %s: %v", cmd, absPath, err))
	}
	return absPath, nil
}

// sampleProjectYAML is a small but complete project document.
const sampleProjectYAML = `# specforge project
name: Users
managerEmail: jane.doe@example.com
swaggerDescription: Users directory API
jiraTicket: APIA-1000
introText: <p>This document describes the users directory API.</p>
extra:
  vitality: true
  ping: true
requests:
  - url: /users/{id}
    method: GET
    summary: Fetch a user
    stdHeaders: [x-correlation-id]
    response: '{"id": 1, "name": "Jane", "roles": [{"name": "admin"}]}'
  - url: /users?limit=10
    method: GET
    summary: List users
    response: '{"items": [{"id": 1, "name": "Jane"}], "total": 1}'
  - url: /users
    method: POST
    summary: Create a user
    headers: '{"x-tenant-id": "acme"}'
    request: '{"name": "Jane", "email": "jane.doe@example.com"}'
    response: '{"id": 2}'
schemaText: |
  User:
    type: object
    properties:
      id:
        type: integer
      name:
        type: string
        maxLength: 64
      email:
        type: string
        nullable: true
    required: [id, name]
`

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# specforge configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path to the project document (JSON or YAML).
# project: ./project.yaml

# Artifacts to emit: descriptor, sdk, appendix, document or all.
# artifacts: [descriptor, sdk]

# SDK target language (typescript|python|go). Defaults to typescript.
# lang: typescript

# Output directory. When omitted, artifacts are printed to stdout.
# out: ./out

# Lay the document out right-to-left.
# rtl: false

# Parse the generated descriptor before writing it.
# check: true

# Base URL for shared header parameter references.
# dictionaryUrl: https://dictionaries.example.com/openapi/Base_Type_Components/1.6.yaml

# Organization tag written into the descriptor.
# organization: default

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite non-empty output directory.
# force: false

# Enable verbose logging.
# verbose: false
`
