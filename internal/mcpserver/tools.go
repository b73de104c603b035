// Package mcpserver registers the MCP tools served on the protected /mcp
// endpoint. Each request gets a server bound to the tenant the
// credential middleware resolved.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexjbarnes/status-mcp/internal/auth"
	"github.com/alexjbarnes/status-mcp/internal/fields"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the MCP implementation name.
const ServerName = "status-mcp"

// RegisterTools adds the tenant tools for res to the given MCP server.
func RegisterTools(server *mcp.Server, res *auth.Resolution, table *fields.Table) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "connection_info",
		Description: "Describe the connection this request authenticated as: credential scheme, connection ID and its configuration with secrets masked.",
	}, connectionInfoHandler(res, table))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "connection_fields",
		Description: "List the configuration fields a connection can carry and whether each one is set for this connection.",
	}, connectionFieldsHandler(res, table))
}

// NewServer builds an MCP server for one resolved tenant.
func NewServer(res *auth.Resolution, table *fields.Table, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: version},
		nil,
	)
	RegisterTools(server, res, table)

	return server
}

// Handler serves streamable HTTP MCP. It must run behind
// auth.Middleware; a request without a resolution is refused. The
// handler is stateless so every request builds its server from its
// own credential.
func Handler(table *fields.Table, version string, logger *slog.Logger) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		res := auth.ResolutionFrom(r.Context())
		if res == nil {
			logger.Error("mcp request reached handler without a resolved credential")
			return nil
		}

		return NewServer(res, table, version)
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// ConnectionInfoInput has no parameters.
type ConnectionInfoInput struct{}

// ConnectionFieldsInput holds parameters for connection_fields.
type ConnectionFieldsInput struct {
	OnlyMissing bool `json:"only_missing,omitempty" jsonschema:"list only required fields that are not set"`
}

// --- Results ---

// ConnectionInfo describes the authenticated tenant.
type ConnectionInfo struct {
	Scheme       string            `json:"scheme"`
	ConnectionID string            `json:"connection_id,omitempty"`
	Config       map[string]string `json:"config"`
}

// FieldStatus is one field of the table and whether it is set.
type FieldStatus struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Format   string `json:"format"`
	Required bool   `json:"required"`
	Secret   bool   `json:"secret"`
	Set      bool   `json:"set"`
}

// ConnectionFields is the connection_fields result.
type ConnectionFields struct {
	Fields []FieldStatus `json:"fields"`
}

// --- Handlers ---

func connectionInfoHandler(res *auth.Resolution, table *fields.Table) mcp.ToolHandlerFor[ConnectionInfoInput, *ConnectionInfo] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ ConnectionInfoInput) (*mcp.CallToolResult, *ConnectionInfo, error) {
		result := &ConnectionInfo{
			Scheme:       res.Scheme,
			ConnectionID: res.ConnectionID,
			Config:       table.Public(res.Config),
		}

		return textResult(result), result, nil
	}
}

func connectionFieldsHandler(res *auth.Resolution, table *fields.Table) mcp.ToolHandlerFor[ConnectionFieldsInput, *ConnectionFields] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ConnectionFieldsInput) (*mcp.CallToolResult, *ConnectionFields, error) {
		result := &ConnectionFields{Fields: []FieldStatus{}}

		for _, f := range table.Fields {
			set := res.Config[f.Name] != ""
			if input.OnlyMissing && (set || !f.Required) {
				continue
			}

			result.Fields = append(result.Fields, FieldStatus{
				Name:     f.Name,
				Label:    f.Label,
				Format:   f.Format,
				Required: f.Required,
				Secret:   f.Secret,
				Set:      set,
			})
		}

		return textResult(result), result, nil
	}
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
