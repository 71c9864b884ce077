// Package pipeline is the single entry point for generating artifacts from
// a project snapshot. Every call works on a deep copy so concurrent callers
// never share state.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/mark3labs/specforge/internal/appendix"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/emitter/goemitter"
	"github.com/mark3labs/specforge/internal/emitter/npmemitter"
	"github.com/mark3labs/specforge/internal/emitter/pyemitter"
	"github.com/mark3labs/specforge/internal/project"
)

// EmitterFor returns the emitter for t, the default target's for unknown t.
func EmitterFor(t emitter.Target) emitter.Emitter {
	switch t {
	case emitter.Python:
		return pyemitter.New()
	case emitter.Go:
		return goemitter.New()
	default:
		return npmemitter.New()
	}
}

// Targets lists the supported SDK targets.
func Targets() []emitter.Target { return emitter.Targets() }

func snapshot(p *project.Project) *project.Project {
	if p == nil {
		return &project.Project{}
	}
	return p.Clone()
}

// Descriptor renders the OpenAPI descriptor.
func Descriptor(p *project.Project, opts ...descriptor.Option) string {
	return descriptor.Build(snapshot(p), opts...)
}

// SDKResult is generated client source for one target.
type SDKResult struct {
	Target   emitter.Target `json:"target"`
	FileName string         `json:"fileName"`
	Source   string         `json:"source"`
	// Fallback is set when the selector was not recognized and the default
	// target was used instead.
	Fallback bool `json:"fallback,omitempty"`
	// Collisions names wrappers that more than one request maps to.
	Collisions []string `json:"collisions,omitempty"`
}

// SDK renders client source for a case-insensitive target selector.
func SDK(p *project.Project, selector string) SDKResult {
	t, ok := emitter.ResolveTarget(selector)
	e := EmitterFor(t)
	snap := snapshot(p)
	return SDKResult{
		Target:     t,
		FileName:   e.FileName(),
		Source:     emitter.Emit(e, snap),
		Fallback:   !ok && strings.TrimSpace(selector) != "",
		Collisions: emitter.DuplicateNames(emitter.Operations(snap, e.Style())),
	}
}

// Appendix renders the appendix markup.
func Appendix(p *project.Project) string { return appendix.Render(snapshot(p)) }

// AppendixFragments returns the structured appendix blocks.
func AppendixFragments(p *project.Project) []appendix.Fragment {
	return appendix.Build(snapshot(p))
}

// Document renders the intro and appendix as one document.
func Document(p *project.Project, rtl bool) string {
	return appendix.Document(snapshot(p), appendix.Options{RTL: rtl})
}

// Artifact names a generated output.
type Artifact string

const (
	ArtifactDescriptor Artifact = "descriptor"
	ArtifactSDK        Artifact = "sdk"
	ArtifactAppendix   Artifact = "appendix"
	ArtifactDocument   Artifact = "document"
)

// Artifacts lists every artifact kind.
func Artifacts() []Artifact {
	return []Artifact{ArtifactDescriptor, ArtifactSDK, ArtifactAppendix, ArtifactDocument}
}

// ParseArtifact accepts an artifact name case-insensitively; "swagger" and
// "openapi" select the descriptor.
func ParseArtifact(s string) (Artifact, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "descriptor", "swagger", "openapi", "":
		return ArtifactDescriptor, nil
	case "sdk", "code", "client":
		return ArtifactSDK, nil
	case "appendix":
		return ArtifactAppendix, nil
	case "document", "doc", "docx":
		return ArtifactDocument, nil
	}
	return "", fmt.Errorf("unknown artifact %q (want one of descriptor, sdk, appendix, document)", s)
}

// Request selects what Generate produces.
type Request struct {
	Artifact Artifact
	Target   string
	RTL      bool
	Options  []descriptor.Option
}

// Output is a generated artifact.
type Output struct {
	Artifact    Artifact       `json:"artifact"`
	FileName    string         `json:"fileName"`
	ContentType string         `json:"contentType"`
	Content     string         `json:"content"`
	Target      emitter.Target `json:"target,omitempty"`
	// Warnings are problems that did not stop generation.
	Warnings []string `json:"warnings,omitempty"`
}

// Generate produces the requested artifact.
func Generate(p *project.Project, req Request) (Output, error) {
	switch req.Artifact {
	case ArtifactDescriptor, "":
		out := Output{Artifact: ArtifactDescriptor, FileName: "openapi.yaml", ContentType: "text/yaml; charset=utf-8", Content: Descriptor(p, req.Options...)}
		for _, name := range descriptor.ShadowedSchemas(p) {
			out.Warnings = append(out.Warnings, fmt.Sprintf("descriptor: schema %q uses a reserved name and was left out", name))
		}
		return out, nil
	case ArtifactSDK:
		r := SDK(p, req.Target)
		out := Output{Artifact: ArtifactSDK, FileName: r.FileName, ContentType: "text/plain; charset=utf-8", Content: r.Source, Target: r.Target}
		for _, name := range r.Collisions {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: more than one request maps to %q", r.Target, name))
		}
		return out, nil
	case ArtifactAppendix:
		return Output{Artifact: ArtifactAppendix, FileName: "appendix.html", ContentType: "text/html; charset=utf-8", Content: Appendix(p)}, nil
	case ArtifactDocument:
		return Output{Artifact: ArtifactDocument, FileName: "document.html", ContentType: "text/html; charset=utf-8", Content: Document(p, req.RTL)}, nil
	}
	return Output{}, fmt.Errorf("pipeline: unknown artifact %q", req.Artifact)
}
