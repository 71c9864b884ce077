// Package mcpserver exposes the generators as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/emitter"
	"github.com/mark3labs/specforge/internal/pipeline"
	"github.com/mark3labs/specforge/internal/project"
	"github.com/mark3labs/specforge/internal/schema"
)

// Tool names.
const (
	ToolBuildDescriptor = "build_descriptor"
	ToolEmitSDK         = "emit_sdk"
	ToolBuildAppendix   = "build_appendix"
	ToolNormalizeSchema = "normalize_schema"
)

// Tools holds the handlers; Options apply to every descriptor.
type Tools struct {
	Options []descriptor.Option
}

// New builds an MCP server with every tool registered.
func New(version string, opts ...descriptor.Option) *server.MCPServer {
	s := server.NewMCPServer("specforge", version, server.WithToolCapabilities(false))
	(&Tools{Options: opts}).Register(s)
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(version string, opts ...descriptor.Option) error {
	return server.ServeStdio(New(version, opts...))
}

// emitSDKTool leaves language open so aliases like ts or py reach the
// resolver.
func emitSDKTool(projectArg mcp.ToolOption) mcp.Tool {
	var targets []string
	for _, tg := range emitter.Targets() {
		targets = append(targets, string(tg))
	}
	return mcp.NewTool(ToolEmitSDK,
		mcp.WithDescription("Generate client SDK source for a project"),
		projectArg,
		mcp.WithString("language",
			mcp.Description(fmt.Sprintf("Target language: %s, or an alias such as ts, py or golang. Unknown values fall back to %s",
				strings.Join(targets, ", "), emitter.DefaultTarget)),
		),
	)
}

// Register adds the tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	projectArg := mcp.WithString("project",
		mcp.Required(),
		mcp.Description("Project document as JSON or YAML"),
	)

	s.AddTool(mcp.NewTool(ToolBuildDescriptor,
		mcp.WithDescription("Render the OpenAPI 3.0.3 descriptor (YAML) for a project"),
		projectArg,
	), t.BuildDescriptor)

	s.AddTool(emitSDKTool(projectArg), t.EmitSDK)

	s.AddTool(mcp.NewTool(ToolBuildAppendix,
		mcp.WithDescription("Render the field appendix document (HTML) for a project"),
		projectArg,
		mcp.WithBoolean("rtl", mcp.Description("Right-to-left layout")),
	), t.BuildAppendix)

	s.AddTool(mcp.NewTool(ToolNormalizeSchema,
		mcp.WithDescription("Normalize schema definitions written as JSON or YAML"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Schema text")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("yaml", "json")),
	), t.NormalizeSchema)
}

func loadProject(req mcp.CallToolRequest) (*project.Project, *mcp.CallToolResult) {
	text, err := req.RequireString("project")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	p, err := project.Parse([]byte(text))
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

func (t *Tools) BuildDescriptor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, bad := loadProject(req)
	if bad != nil {
		return bad, nil
	}
	return mcp.NewToolResultText(pipeline.Descriptor(p, t.Options...)), nil
}

func (t *Tools) EmitSDK(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, bad := loadProject(req)
	if bad != nil {
		return bad, nil
	}
	res := pipeline.SDK(p, req.GetString("language", ""))
	return mcp.NewToolResultText(res.Source), nil
}

func (t *Tools) BuildAppendix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, bad := loadProject(req)
	if bad != nil {
		return bad, nil
	}
	return mcp.NewToolResultText(pipeline.Document(p, req.GetBool("rtl", false))), nil
}

func (t *Tools) NormalizeSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := schema.Normalize(text)
	if err != nil {
		var serr *schema.Error
		if errors.As(err, &serr) {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", serr.Code, serr.Message)), nil
		}
		return nil, err
	}
	out, err := schema.ToText(m, schema.ParseFormat(req.GetString("format", "yaml")))
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(out), nil
}
