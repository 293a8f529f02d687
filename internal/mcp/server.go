package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/cortex/internal/store"
)

const serverInstructions = "Cortex exposes browser-captured bug capsules " +
	"(runtime evidence: URL, DOM excerpt, recent interactions, errors, failed " +
	"network calls) for use by coding agents. Typical flow: call " +
	"cortex_get_last_capsule, reason over the evidence, and propose a patch " +
	"in the repo. Capsules and diagnoses live under the daemon's data " +
	"directory (./.cortex by default)."

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler
// factories.
var toolRegistry = map[string]toolEntry{
	"cortex_list_capsules": {
		def:     listCapsulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListCapsules },
	},
	"cortex_get_capsule": {
		def:     getCapsuleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetCapsule },
	},
	"cortex_get_last_capsule": {
		def:     getLastCapsuleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetLastCapsule },
	},
	"cortex_get_diagnosis": {
		def:     getDiagnosisToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetDiagnosis },
	},
	"cortex_get_last_diagnosis": {
		def:     getLastDiagnosisToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetLastDiagnosis },
	},
}

// AllToolNames returns a list of all registered tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server with the Cortex query tools
// registered. The query surface is read-only: capsules are written by
// the relay daemon, never through MCP.
func NewServer(st *store.Store, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cortex",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)

	h := NewHandlers(st)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run starts the MCP server using stdio transport.
func Run(st *store.Store, version string) error {
	s := NewServer(st, version)
	return server.ServeStdio(s)
}
