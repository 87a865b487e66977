package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"looper/internal/state"
	"looper/internal/store"
)

// Server exposes loop session state and history as MCP tools, so an
// agent (or dashboard) can introspect runs without touching the files
// the controller writes.
type Server struct {
	store  store.Store
	logDir string
}

// NewServer creates the MCP server wrapper. logDir is the default
// directory whose live state the status tool reads.
func NewServer(s store.Store, logDir string) *Server {
	return &Server{store: s, logDir: logDir}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("looper", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.statusTool())
	srv.AddTool(s.historyTool())
	srv.AddTool(s.logTailTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// looper_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("looper_status",
		mcp.WithDescription("Read the live session state of a loop run. Returns the session JSON (id, status, iteration, completion count, cost, timestamps)."),
		mcp.WithString("log_dir", mcp.Description("Log directory to read (defaults to the configured one)")),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("log_dir", s.logDir)

	st, err := state.New(dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open log dir: %v", err)), nil
	}
	sess, err := st.LoadSession()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no session state in %s: %v", dir, err)), nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// looper_history
func (s *Server) historyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("looper_history",
		mcp.WithDescription("List archived loop sessions, newest first. Returns a JSON array with session id, mode, task, status, iterations, and cost."),
		mcp.WithNumber("limit", mcp.Description("Max sessions to return (default 20)")),
	)
	return tool, s.handleHistory
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	recs, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions: %v", err)), nil
	}

	type sessionOut struct {
		SessionID    string  `json:"session_id"`
		Mode         string  `json:"mode"`
		Task         string  `json:"task"`
		Status       string  `json:"status"`
		Iterations   int     `json:"iterations"`
		TotalCostUSD float64 `json:"total_cost_usd"`
		StartedAt    string  `json:"started_at"`
	}

	out := make([]sessionOut, len(recs))
	for i, r := range recs {
		out[i] = sessionOut{
			SessionID:    r.SessionID,
			Mode:         r.Mode,
			Task:         r.Task,
			Status:       string(r.Status),
			Iterations:   r.Iterations,
			TotalCostUSD: r.TotalCostUSD,
			StartedAt:    r.StartedAt.Format("2006-01-02 15:04:05"),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// looper_log_tail
func (s *Server) logTailTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("looper_log_tail",
		mcp.WithDescription("Read the most recent structured events from a loop session log, oldest first."),
		mcp.WithString("log_dir", mcp.Description("Log directory to read (defaults to the configured one)")),
		mcp.WithNumber("count", mcp.Description("Max events to return (default 50)")),
	)
	return tool, s.handleLogTail
}

func (s *Server) handleLogTail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := request.GetString("log_dir", s.logDir)
	count := request.GetInt("count", 50)

	st, err := state.New(dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open log dir: %v", err)), nil
	}
	events, err := st.TailEvents(count)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read session log: %v", err)), nil
	}

	data, err := json.Marshal(events)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal events: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
