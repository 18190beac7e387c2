// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes glean sessions to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/glean/internal/apperr"
	"github.com/starford/glean/internal/ingest"
	"github.com/starford/glean/internal/models"
	"github.com/starford/glean/internal/session"
)

const contractURI = "glean://annotation-format"

// Store is the read side the tools need.
type Store interface {
	ListSessions(ctx context.Context, limit, offset int) ([]models.Session, int, error)
	ListEntities(ctx context.Context, sessionID string) ([]models.Entity, error)
	GetSession(ctx context.Context, id string) (models.Session, error)
}

// Sessions hands out active sessions.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Ingestor stores and analyzes uploaded screenshots.
type Ingestor interface {
	Ingest(ctx context.Context, sessionID, filename string, data []byte) (*ingest.Result, error)
}

// Server wraps the MCP server with glean tools.
type Server struct {
	mcp      *server.MCPServer
	store    Store
	sessions Sessions
	ingestor Ingestor
}

// New creates a new MCP server with all glean tools registered.
func New(store Store, sessions Sessions, ingestor Ingestor) *Server {
	s := &Server{store: store, sessions: sessions, ingestor: ingestor}

	s.mcp = server.NewMCPServer(
		"Glean",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List research sessions, most recently updated first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of sessions (default 50)")),
	), s.listSessions)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the Markdown note of a session, annotation markers included."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("append_note",
		mcp.WithDescription("Append text to the end of a session note and save it. "+
			"Wrap assistant findings in an annotation block; read the contract via "+
			"get_annotation_contract or the "+contractURI+" resource first."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Markdown text to append")),
	), s.appendNote)

	s.mcp.AddTool(mcp.NewTool("render_note",
		mcp.WithDescription("Render a session note into structured display nodes (JSON)."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.renderNote)

	s.mcp.AddTool(mcp.NewTool("list_entities",
		mcp.WithDescription("List the entities extracted from a session's screenshots, summaries included."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.listEntities)

	s.mcp.AddTool(mcp.NewTool("upload_screenshot",
		mcp.WithDescription("Add a screenshot to a session from a base64 data URI. "+
			"The image is analyzed and its entities are stored."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("data", mcp.Required(), mcp.Description("data:image/png;base64,... (png, jpeg, gif or webp)")),
		mcp.WithString("filename", mcp.Description("Optional original filename")),
	), s.uploadScreenshot)

	s.mcp.AddTool(mcp.NewTool("get_annotation_contract",
		mcp.WithDescription("Returns the annotation block format used in session notes."),
	), s.getAnnotationContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Annotation Format",
			mcp.WithResourceDescription("How assistant edits are marked inside session notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio runs the MCP server on stdin/stdout until ctx is done or
// stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	items, total, err := s.store.ListSessions(ctx, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"sessions": items, "total": total})
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.session(ctx, req)
	if res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(sess.Note().Content), nil
}

func (s *Server) appendNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, res := s.session(ctx, req)
	if res != nil {
		return res, nil
	}
	if err := sess.AppendNote(ctx, text); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("appended to %s (checksum %s)", sess.ID(), sess.Note().Checksum)), nil
}

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.session(ctx, req)
	if res != nil {
		return res, nil
	}
	return jsonResult(sess.Render())
}

func (s *Server) listEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return toolError(id, err), nil
	}
	items, err := s.store.ListEntities(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no entities found"), nil
	}
	return jsonResult(items)
}

func (s *Server) uploadScreenshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, ext, err := ingest.DecodeDataURI(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("filename", "screenshot"+ext)

	result, err := s.ingestor.Ingest(ctx, id, name, data)
	if err != nil {
		return toolError(id, err), nil
	}
	return jsonResult(result)
}

func (s *Server) getAnnotationContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(AnnotationContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     AnnotationContract,
		},
	}, nil
}

// session resolves the session_id argument. A non-nil result is the
// error to hand back to the client.
func (s *Server) session(ctx context.Context, req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, toolError(id, err)
	}
	return sess, nil
}

func toolError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
