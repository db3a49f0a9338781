// Package mcp exposes a session host to AI agents over the Model Context
// Protocol: document reads, command submission through the normal policy
// path, and a party status summary.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/evhart/bivouac"
	"github.com/evhart/bivouac/pkg/domain"
)

// Session is the host surface the MCP tools call into. *bivouac.Host
// satisfies it.
type Session interface {
	Submit(ctx context.Context, cmd domain.Command) (bool, error)
	Document(ctx context.Context, name domain.DocName) (map[string]any, error)
	Effects(ctx context.Context, entity domain.EntityRef) ([]domain.Effect, error)
	Status(ctx context.Context) (domain.GlobalContext, error)
}

// StatusResponse summarizes the session for agents.
type StatusResponse struct {
	Tracked    []domain.EntityRef   `json:"tracked" jsonschema_description:"Entities currently tracked by any document"`
	Entities   []domain.EntityRef   `json:"entities" jsonschema_description:"Every entity known to the session"`
	SyncMode   string               `json:"syncMode" jsonschema_description:"Aura sync mode (off, party, scene)"`
	Hazard     domain.HazardDoc     `json:"hazard" jsonschema_description:"The active environmental hazard"`
	Reputation domain.ReputationDoc `json:"reputation" jsonschema_description:"Party standing"`
}

// SubmitResponse reports a command's outcome.
type SubmitResponse struct {
	Applied bool `json:"applied" jsonschema_description:"Whether the command changed a document"`
}

// Server wraps a session host and exposes it as an MCP server.
type Server struct {
	session   Session
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server over the host.
func NewServer(session Session) *Server {
	s := &Server{
		session:   session,
		mcpServer: server.NewMCPServer("bivouac-mcp", strings.TrimSpace(bivouac.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: read_document
	readTool := mcp.NewTool("read_document",
		mcp.WithDescription("Read one of the session documents (watch, march, injuries, hazard, reputation, supplies, sync), fully defaulted."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Document name")),
	)
	s.mcpServer.AddTool(readTool, s.handleReadDocument)

	// TOOL: submit_command
	submitTool := mcp.NewTool("submit_command",
		mcp.WithDescription("Submit a session command (assignMe, clearEntry, setEntryNotes, joinRank, setNote) on behalf of an identity. Rejected commands are silently dropped; applied=false means nothing changed."),
		mcp.WithString("op", mcp.Required(), mcp.Description("Command kind")),
		mcp.WithString("actor", mcp.Required(), mcp.Description("Entity the command acts for")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Requesting identity")),
		mcp.WithString("payload", mcp.Description("JSON object with kind-specific fields (slotId, notes, rank, note)")),
		mcp.WithOutputSchema[SubmitResponse](),
	)
	s.mcpServer.AddTool(submitTool, mcp.NewStructuredToolHandler(s.handleSubmitCommand))

	// TOOL: party_status
	statusTool := mcp.NewTool("party_status",
		mcp.WithDescription("Summarize the session: tracked entities, sync mode, active hazard, reputation."),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handlePartyStatus))

	// TOOL: list_effects
	effectsTool := mcp.NewTool("list_effects",
		mcp.WithDescription("List the live materialized effects on an entity."),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Entity reference")),
	)
	s.mcpServer.AddTool(effectsTool, s.handleListEffects)
}

func (s *Server) handleReadDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	known := false
	for _, d := range domain.DocNames {
		if string(d) == name {
			known = true
			break
		}
	}
	if !known {
		return mcp.NewToolResultError(fmt.Sprintf("unknown document %q", name)), nil
	}

	blob, err := s.session.Document(ctx, domain.DocName(name))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(blob)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSubmitCommand(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SubmitResponse, error) {
	op, _ := args["op"].(string)
	actor, _ := args["actor"].(string)
	from, _ := args["from"].(string)

	cmd := domain.Command{
		Kind:  domain.CommandKind(op),
		Actor: domain.EntityRef(actor),
		From:  domain.Identity(from),
	}
	if payloadStr, ok := args["payload"].(string); ok && payloadStr != "" {
		if err := json.Unmarshal([]byte(payloadStr), &cmd.Payload); err != nil {
			return SubmitResponse{}, fmt.Errorf("payload is not a JSON object: %w", err)
		}
	}

	applied, err := s.session.Submit(ctx, cmd)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("submit failed: %w", err)
	}
	return SubmitResponse{Applied: applied}, nil
}

func (s *Server) handlePartyStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	g, err := s.session.Status(ctx)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("status failed: %w", err)
	}
	return StatusResponse{
		Tracked:    g.Tracked(),
		Entities:   g.AllEntities,
		SyncMode:   g.Sync.Mode,
		Hazard:     g.Hazard,
		Reputation: g.Reputation,
	}, nil
}

func (s *Server) handleListEffects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entity, err := request.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	effects, err := s.session.Effects(ctx, domain.EntityRef(entity))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(effects)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: bivouac://status
	s.mcpServer.AddResource(mcp.NewResource("bivouac://status", "Session Status",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		g, err := s.session.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build status: %w", err)
		}
		jsonBytes, _ := json.Marshal(StatusResponse{
			Tracked:    g.Tracked(),
			Entities:   g.AllEntities,
			SyncMode:   g.Sync.Mode,
			Hazard:     g.Hazard,
			Reputation: g.Reputation,
		})

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "bivouac://status",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
