package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

const defaultPageSize = 20

// Server exposes the read API as MCP tools over stdio.
type Server struct {
	svc *agora.Service
	mcp *server.MCPServer

	in  io.Reader
	out io.Writer
}

func NewServer(svc *agora.Service) *Server {
	s := &Server{
		svc: svc,
		in:  os.Stdin,
		out: os.Stdout,
	}

	s.mcp = server.NewMCPServer(
		core.AgoraName,
		core.AgoraVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("mcp stdio server started")
	return server.NewStdioServer(s.mcp).Listen(ctx, s.in, s.out)
}

// Shutdown is a no-op, Listen returns once ctx is cancelled.
func (s *Server) Shutdown(context.Context) error {
	return nil
}

func (s *Server) registerTools() {
	pageOpts := []mcpproto.ToolOption{
		mcpproto.WithNumber("page", mcpproto.Description("1-based page number"), mcpproto.DefaultNumber(1), mcpproto.Min(1)),
		mcpproto.WithNumber("page_size", mcpproto.Description("Messages per page"), mcpproto.DefaultNumber(defaultPageSize), mcpproto.Min(1), mcpproto.Max(core.MaxPageSize)),
	}

	s.mcp.AddTool(mcpproto.NewTool("list_points",
		mcpproto.WithDescription("List debate points with their status and agreement counts."),
		mcpproto.WithReadOnlyHintAnnotation(true),
		mcpproto.WithNumber("round_num", mcpproto.Description("Only points created in this round")),
	), s.listPoints)

	s.mcp.AddTool(mcpproto.NewTool("point_history",
		append([]mcpproto.ToolOption{
			mcpproto.WithDescription("Page through the messages of one debate point, oldest first."),
			mcpproto.WithReadOnlyHintAnnotation(true),
			mcpproto.WithString("point_id", mcpproto.Required(), mcpproto.Description("Point id from list_points")),
		}, pageOpts...)...,
	), s.pointHistory)

	s.mcp.AddTool(mcpproto.NewTool("agora",
		append([]mcpproto.ToolOption{
			mcpproto.WithDescription("Page through every message of the debate by round, then completion time."),
			mcpproto.WithReadOnlyHintAnnotation(true),
			mcpproto.WithNumber("round_num", mcpproto.Description("Only messages from this round")),
		}, pageOpts...)...,
	), s.agora)
}

func (s *Server) listPoints(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	points, err := s.svc.ListPoints(ctx, roundArg(req))
	return result(points, err)
}

func (s *Server) pointHistory(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	id, err := req.RequireString("point_id")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	page, err := s.svc.PointHistory(ctx, id, req.GetInt("page", 1), req.GetInt("page_size", defaultPageSize))
	return result(page, err)
}

func (s *Server) agora(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	page, err := s.svc.Agora(ctx, roundArg(req), req.GetInt("page", 1), req.GetInt("page_size", defaultPageSize))
	return result(page, err)
}

func roundArg(req mcpproto.CallToolRequest) *int {
	if _, ok := req.GetArguments()["round_num"]; !ok {
		return nil
	}
	n := req.GetInt("round_num", 0)
	return &n
}

// result reports domain errors as tool errors so the client model can read
// them; only encoding failures are protocol errors.
func result(v any, err error) (*mcpproto.CallToolResult, error) {
	if err != nil {
		return mcpproto.NewToolResultError(core.KindOf(err) + ": " + err.Error()), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcpproto.NewToolResultText(string(data)), nil
}
