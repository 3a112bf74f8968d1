// Package mcptool implements the Adapter SPI (pkg/spi.Adapter) by
// delegating tool execution to a single tool exposed by an MCP server,
// grounded on the teacher's pkg/tools.MCPTool/RegisterMCPTools: that code
// bridges an MCP client into the teacher's own tool-registry interface;
// this package performs the same bridge into memv2's narrower Adapter SPI,
// one Adapter instance per MCP tool rather than a whole registry.
package mcptool

import (
	"context"
	"os/exec"
	"strings"

	"github.com/XiaoConstantine/mcp-go/pkg/client"
	mcplogging "github.com/XiaoConstantine/mcp-go/pkg/logging"
	models "github.com/XiaoConstantine/mcp-go/pkg/model"
	"github.com/XiaoConstantine/mcp-go/pkg/transport"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/spi"
)

// Adapter bridges one MCP server tool into the Adapter SPI. domainKey is
// supplied by the caller (spec 6: "stable, short") rather than derived from
// the MCP server, since one server may expose tools spanning more than one
// logical domain.
type Adapter struct {
	client    *client.Client
	proc      *exec.Cmd
	toolName  string
	domainKey string
	tool      models.Tool

	lastState string
}

// StdioOptions configures launching an MCP server as a subprocess
// communicating over stdio, the transport the teacher's
// NewMCPClientFromStdio also targets.
type StdioOptions struct {
	Command       string
	Args          []string
	ClientName    string
	ClientVersion string
}

// DialStdio spawns Command, speaks MCP over its stdin/stdout, lists its
// tools, and returns an Adapter for toolName (a ResourceNotFound error if
// the server does not expose it). The subprocess is killed when ctx is
// canceled.
func DialStdio(ctx context.Context, opts StdioOptions, toolName, domainKey string) (*Adapter, error) {
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, memverrors.Wrap(err, memverrors.TransportFailed, "open mcp server stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, memverrors.Wrap(err, memverrors.TransportFailed, "open mcp server stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, memverrors.Wrap(err, memverrors.TransportFailed, "start mcp server process")
	}

	logger := mcplogging.NewStdLogger(mcplogging.InfoLevel)
	t := transport.NewStdioTransport(stdout, stdin, logger)

	clientOpts := []client.Option{client.WithLogger(logger)}
	if opts.ClientName != "" && opts.ClientVersion != "" {
		clientOpts = append(clientOpts, client.WithClientInfo(opts.ClientName, opts.ClientVersion))
	}
	mcpClient := client.NewClient(t, clientOpts...)

	if _, err := mcpClient.Initialize(ctx); err != nil {
		_ = cmd.Process.Kill()
		return nil, memverrors.Wrap(err, memverrors.TransportFailed, "initialize mcp client")
	}

	toolsResult, err := mcpClient.ListTools(ctx, nil)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, memverrors.Wrap(err, memverrors.TransportFailed, "list mcp tools")
	}

	var found *models.Tool
	for i := range toolsResult.Tools {
		if toolsResult.Tools[i].Name == toolName {
			found = &toolsResult.Tools[i]
			break
		}
	}
	if found == nil {
		_ = cmd.Process.Kill()
		return nil, memverrors.WithFields(
			memverrors.New(memverrors.ResourceNotFound, "mcp server does not expose tool"),
			memverrors.Fields{"tool": toolName},
		)
	}

	return &Adapter{
		client:    mcpClient,
		proc:      cmd,
		toolName:  toolName,
		domainKey: domainKey,
		tool:      *found,
	}, nil
}

// Close terminates the underlying MCP server subprocess.
func (a *Adapter) Close() error {
	if a.proc == nil || a.proc.Process == nil {
		return nil
	}
	return a.proc.Process.Kill()
}

// ToolSpec implements spi.Adapter: the MCP tool's own JSON-schema input
// shape is reused directly as the Adapter SPI's InputSchema, converted from
// models.InputSchema's Properties map into the core's _type/_required
// schemaField convention (pkg/spi/validate.go).
func (a *Adapter) ToolSpec() spi.ToolSpec {
	schema := make(map[string]interface{}, len(a.tool.InputSchema.Properties))
	for name, prop := range a.tool.InputSchema.Properties {
		schema[name] = map[string]interface{}{
			"_type":     mcpJSONType(prop.Type),
			"_required": prop.Required,
		}
	}
	return spi.ToolSpec{
		Name:        a.tool.Name,
		InputSchema: schema,
	}
}

// Execute implements spi.Adapter by forwarding payload to the MCP tool
// call, grounded on the teacher's MCPTool.Execute/extractContentText.
func (a *Adapter) Execute(ctx context.Context, payload map[string]interface{}) (spi.ExecuteResult, error) {
	result, err := a.client.CallTool(ctx, a.toolName, payload)
	if err != nil {
		return spi.ExecuteResult{}, memverrors.Wrap(err, memverrors.TransportFailed, "mcp call_tool failed")
	}

	text := extractContentText(result.Content)
	a.lastState = text

	if result.IsError {
		return spi.ExecuteResult{ErrorText: text}, nil
	}
	return spi.ExecuteResult{OutputText: text}, nil
}

// CaptureFinalState implements spi.Adapter. MCP tools have no separate
// state-introspection call in the base protocol, so the last observed
// result text is the best available evidence for the referee.
func (a *Adapter) CaptureFinalState(ctx context.Context) (string, error) {
	return a.lastState, nil
}

// DomainKey implements spi.Adapter.
func (a *Adapter) DomainKey() string { return a.domainKey }

func extractContentText(content []models.Content) string {
	var parts []string
	for _, item := range content {
		if tc, ok := item.(models.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func mcpJSONType(t string) string {
	switch strings.ToLower(t) {
	case "number", "integer", "float":
		return "number"
	case "boolean", "bool":
		return "bool"
	case "object":
		return "object"
	case "array":
		return "array"
	default:
		return "string"
	}
}
