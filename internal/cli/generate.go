package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/pipeline"
	"github.com/mark3labs/specforge/internal/project"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Project       string
	Artifacts     []string
	Lang          string
	Out           string
	RTL           bool
	Check         bool
	DictionaryURL string
	Organization  string
	ConfigPath    string
	DryRun        bool
	Force         bool
	Verbose       bool

	artifacts []pipeline.Artifact
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Artifacts: []string{string(pipeline.ArtifactDescriptor)}, Lang: string(emitter.DefaultTarget)}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the descriptor, client SDK or appendix for a project",
		Long: "Generate artifacts from a project document. " +
			"Options can be provided via flags, config files, or defaults. " +
			"Without --out the artifacts are printed to stdout.",
		Example: strings.TrimSpace(`  specforge generate --project users.json
  specforge generate --project users.json --artifact sdk --lang python --out ./client
  specforge --config specforge.yaml generate --artifact descriptor,appendix --out ./build --force`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("project", "", "Path to the project document (JSON or YAML)")
	flags.StringSlice("artifact", nil, "Artifacts to emit (descriptor|sdk|appendix|document|all); defaults to descriptor")
	flags.String("lang", "", "SDK target language (typescript|python|go); defaults to typescript")
	flags.String("out", "", "Output directory; prints to stdout when omitted")
	flags.Bool("rtl", false, "Lay the document out right-to-left")
	flags.Bool("check", false, "Parse the generated descriptor and fail when it is not a valid document")
	flags.String("dictionary-url", "", "Base URL for shared header parameter references")
	flags.String("organization", "", "Organization tag written into the descriptor")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	stringFlags := map[string]*string{
		"project":        &cfg.Project,
		"lang":           &cfg.Lang,
		"out":            &cfg.Out,
		"dictionary-url": &cfg.DictionaryURL,
		"organization":   &cfg.Organization,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	boolFlags := map[string]*bool{
		"rtl":     &cfg.RTL,
		"check":   &cfg.Check,
		"dry-run": &cfg.DryRun,
		"force":   &cfg.Force,
		"verbose": &cfg.Verbose,
	}
	for name, dst := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("artifact") {
		value, err := flags.GetStringSlice("artifact")
		if err != nil {
			return err
		}
		cfg.Artifacts = sanitizeList(value)
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Project = strings.TrimSpace(c.Project)
	c.Lang = strings.ToLower(strings.TrimSpace(c.Lang))
	c.Out = strings.TrimSpace(c.Out)
	c.DictionaryURL = strings.TrimSpace(c.DictionaryURL)
	c.Organization = strings.TrimSpace(c.Organization)
	c.Artifacts = sanitizeList(c.Artifacts)
}

func (c *GenerateConfig) validate() error {
	if c.Project == "" {
		return newUsageError("generate: --project is required (set via flag or config file)")
	}

	if c.Lang == "" {
		c.Lang = string(emitter.DefaultTarget)
	}
	if _, ok := emitter.ResolveTarget(c.Lang); !ok {
		return newUsageError(fmt.Sprintf("generate: unsupported --lang %q (allowed: %s)", c.Lang, joinTargets()))
	}

	c.artifacts = nil
	if len(c.Artifacts) == 0 {
		c.Artifacts = []string{string(pipeline.ArtifactDescriptor)}
	}
	seen := map[pipeline.Artifact]bool{}
	for _, name := range c.Artifacts {
		if strings.EqualFold(name, "all") {
			for _, a := range pipeline.Artifacts() {
				if !seen[a] {
					seen[a] = true
					c.artifacts = append(c.artifacts, a)
				}
			}
			continue
		}
		a, err := pipeline.ParseArtifact(name)
		if err != nil {
			return newUsageError("generate: " + err.Error())
		}
		if !seen[a] {
			seen[a] = true
			c.artifacts = append(c.artifacts, a)
		}
	}

	return nil
}

func joinTargets() string {
	names := make([]string, 0, len(emitter.Targets()))
	for _, t := range emitter.Targets() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func (c *GenerateConfig) descriptorOptions() []descriptor.Option {
	var opts []descriptor.Option
	if c.DictionaryURL != "" {
		opts = append(opts, descriptor.WithDictionaryURL(c.DictionaryURL))
	}
	if c.Organization != "" {
		opts = append(opts, descriptor.WithOrganization(c.Organization))
	}
	return opts
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	// 1) Load the project document
	p, err := project.Load(cfg.Project)
	if err != nil {
		var le *project.LoadError
		if errors.As(err, &le) {
			msg := fmt.Sprintf("project: %s", le.Message)
			if le.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, le.Location)
			}
			return newUsageError(msg)
		}
		return err
	}
	if cfg.Verbose {
		log.Printf("[info] loaded %q: %d requests, %d schemas", p.DisplayName(), len(p.Requests), p.Schemas.Len())
	}

	// 2) Render every requested artifact
	files := make(map[string][]byte, len(cfg.artifacts))
	var order []string
	for _, a := range cfg.artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := pipeline.Generate(p, pipeline.Request{
			Artifact: a,
			Target:   cfg.Lang,
			RTL:      cfg.RTL,
			Options:  cfg.descriptorOptions(),
		})
		if err != nil {
			return err
		}
		for _, w := range out.Warnings {
			log.Printf("[WARN] %s", w)
		}
		if a == pipeline.ArtifactDescriptor && cfg.Check {
			if err := checkDescriptor(out.Content, cfg.Verbose); err != nil {
				return err
			}
		}
		files[out.FileName] = []byte(out.Content)
		order = append(order, out.FileName)
	}

	// 3) Print or write
	if cfg.Out == "" {
		for i, name := range order {
			if len(order) > 1 {
				if i > 0 {
					fmt.Fprintln(os.Stdout)
				}
				fmt.Fprintf(os.Stdout, "# %s\n", name)
			}
			fmt.Fprint(os.Stdout, string(files[name]))
		}
		return nil
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}
	if cfg.DryRun {
		planned := emitter.Plan(files)
		paths := make([]string, 0, len(planned))
		for _, pf := range planned {
			paths = append(paths, pf.RelPath)
		}
		printPlan(absOut, len(planned), paths)
		return nil
	}
	if err := emitter.WriteFiles(cfg.Out, files, cfg.Force); err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.Verbose {
		for _, name := range order {
			log.Printf("[info] wrote %s", filepath.Join(absOut, name))
		}
	}
	return nil
}

// checkDescriptor parses the rendered YAML as an OpenAPI document.
func checkDescriptor(text string, verbose bool) error {
	doc, err := descriptor.Inspect(text)
	if err != nil {
		return newUsageError(fmt.Sprintf("generate: descriptor check failed: %v", err))
	}
	ids := descriptor.OperationIDs(doc)
	seen := make(map[string]int, len(ids))
	for _, id := range ids {
		if seen[id]++; seen[id] == 2 {
			log.Printf("[WARN] descriptor: operationId %q is used more than once", id)
		}
	}
	if verbose {
		log.Printf("[info] descriptor ok: %d paths, %d operations", len(doc.Paths), len(ids))
	}
	return nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	strFields := map[string]*string{
		"project":       &cfg.Project,
		"lang":          &cfg.Lang,
		"out":           &cfg.Out,
		"dictionaryurl": &cfg.DictionaryURL,
		"organization":  &cfg.Organization,
	}
	boolFields := map[string]*bool{
		"rtl":     &cfg.RTL,
		"check":   &cfg.Check,
		"dryrun":  &cfg.DryRun,
		"force":   &cfg.Force,
		"verbose": &cfg.Verbose,
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		if dst, ok := strFields[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = str
			continue
		}
		if dst, ok := boolFields[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = val
			continue
		}
		switch normalized {
		case "artifact", "artifacts":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Artifacts = sanitizeList(list)
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
