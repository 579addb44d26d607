package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/vibebox/config"
	"github.com/isdmx/vibebox/coordinator"
)

// Tool names
const (
	ToolSupportedLanguages = "supported_languages"
	ToolSandboxPreview     = "sandbox_preview"
	ToolCodePreview        = "code_preview"
	ToolExecuteCode        = "execute_code"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config     *config.Config
	logger     *zap.Logger
	service    coordinator.Service
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, service coordinator.Service) (*MCPServer, error) {
	if service == nil {
		return nil, errors.New("mcpserver: service is required")
	}

	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		service: service,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Int("server.rest_port", cfg.Server.RESTPort),
		zap.Int("sandbox.default_timeout_ms", cfg.Sandbox.DefaultTimeoutMs),
		zap.Int("sandbox.max_timeout_ms", cfg.Sandbox.MaxTimeoutMs),
		zap.Int("sandbox.memory_mb", cfg.Sandbox.MemoryMB),
		zap.Int("sandbox.max_output_bytes", cfg.Sandbox.MaxOutputBytes),
		zap.String("sandbox.stdin_mode", cfg.Sandbox.StdinMode),
		zap.Int("sandbox.max_concurrent", cfg.Sandbox.MaxConcurrent),
		zap.String("storage.endpoint", cfg.Storage.Endpoint),
		zap.String("storage.bucket", cfg.Storage.Bucket),
		zap.String("listings.dsn", cfg.Listings.DSN),
		zap.Strings("languages", service.SupportedLanguages()),
	)

	s.mcpServer = server.NewMCPServer("vibebox-sandbox", "Listing code execution sandbox",
		server.WithToolCapabilities(false))

	s.registerTools()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)

	return s, nil
}

func (s *MCPServer) registerTools() {
	callerID := map[string]any{
		"type":        "string",
		"description": "Verified identity of the caller",
	}
	listingID := map[string]any{
		"type":        "string",
		"description": "Listing identifier",
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        ToolSupportedLanguages,
		Description: "List the languages the sandbox can execute",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, s.handleSupportedLanguages)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        ToolSandboxPreview,
		Description: "Describe a listing's files and whether they can be executed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"caller_id":  callerID,
				"listing_id": listingID,
			},
			Required: []string{"caller_id", "listing_id"},
		},
	}, s.handleSandboxPreview)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        ToolCodePreview,
		Description: fmt.Sprintf("Show the first %d lines of a listing file", coordinator.PreviewLineLimit),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"caller_id":  callerID,
				"listing_id": listingID,
				"file_id": map[string]any{
					"type":        "string",
					"description": "File identifier within the listing",
				},
			},
			Required: []string{"caller_id", "listing_id", "file_id"},
		},
	}, s.handleCodePreview)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        ToolExecuteCode,
		Description: "Execute a listing file in the sandbox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"caller_id":  callerID,
				"listing_id": listingID,
				"file_id": map[string]any{
					"type":        "string",
					"description": "File to run (optional, defaults to the main file)",
				},
				"input": map[string]any{
					"type":        "string",
					"description": "Program input (optional)",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Wall-clock timeout in milliseconds (optional)",
				},
			},
			Required: []string{"caller_id", "listing_id"},
		},
	}, s.handleExecuteCode)
}

func (s *MCPServer) handleSupportedLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"languages": s.service.SupportedLanguages()})
}

func (s *MCPServer) handleSandboxPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callerID, listingID, errResult := requireIdentity(request)
	if errResult != nil {
		return errResult, nil
	}

	preview, err := s.service.Preview(ctx, callerID, listingID)
	if err != nil {
		return s.failure(ToolSandboxPreview, listingID, err), nil
	}
	return jsonResult(preview)
}

func (s *MCPServer) handleCodePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callerID, listingID, errResult := requireIdentity(request)
	if errResult != nil {
		return errResult, nil
	}
	fileID, err := request.RequireString("file_id")
	if err != nil || strings.TrimSpace(fileID) == "" {
		return mcp.NewToolResultError("file_id parameter is required"), nil
	}

	preview, err := s.service.CodePreview(ctx, callerID, listingID, fileID)
	if err != nil {
		return s.failure(ToolCodePreview, listingID, err), nil
	}
	return jsonResult(preview)
}

func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	callerID, listingID, errResult := requireIdentity(request)
	if errResult != nil {
		return errResult, nil
	}

	req := coordinator.ExecuteRequest{
		ListingID: listingID,
		FileID:    request.GetString("file_id", ""),
		Input:     request.GetString("input", ""),
		TimeoutMs: request.GetInt("timeout_ms", 0),
	}

	s.logger.Info("code execution requested",
		zap.String("caller", callerID),
		zap.String("listing", listingID),
		zap.String("file", req.FileID))

	result, err := s.service.Execute(ctx, callerID, req)
	if err != nil {
		return s.failure(ToolExecuteCode, listingID, err), nil
	}

	s.logger.Info("code execution completed",
		zap.String("listing", listingID),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("output_len", len(result.Output)))

	return jsonResult(result)
}

// failure turns a coordinator error into an error tool result
func (s *MCPServer) failure(tool, listingID string, err error) *mcp.CallToolResult {
	kind := "internal"
	switch {
	case errors.Is(err, coordinator.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, coordinator.ErrForbidden):
		kind = "forbidden"
	case errors.Is(err, coordinator.ErrContentUnavailable):
		kind = "content_unavailable"
	}

	if kind == "internal" || kind == "content_unavailable" {
		s.logger.Error("tool call failed",
			zap.String("tool", tool),
			zap.String("listing", listingID),
			zap.Error(err))
	} else {
		s.logger.Info("tool call rejected",
			zap.String("tool", tool),
			zap.String("listing", listingID),
			zap.String("kind", kind))
	}

	data, _ := json.Marshal(map[string]string{"error": err.Error(), "kind": kind})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
		IsError: true,
	}
}

func requireIdentity(request mcp.CallToolRequest) (callerID, listingID string, errResult *mcp.CallToolResult) {
	callerID, err := request.RequireString("caller_id")
	if err != nil || strings.TrimSpace(callerID) == "" {
		return "", "", mcp.NewToolResultError("caller_id parameter is required")
	}
	listingID, err = request.RequireString("listing_id")
	if err != nil || strings.TrimSpace(listingID) == "" {
		return "", "", mcp.NewToolResultError("listing_id parameter is required")
	}
	return callerID, listingID, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	err := s.httpServer.Start(fmt.Sprintf(":%d", port))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP transport
func (s *MCPServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
