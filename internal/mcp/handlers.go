package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cortex/internal/errors"
	"github.com/hpungsan/cortex/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store *store.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store) *Handlers {
	return &Handlers{store: st}
}

// Request types for each tool

// ListCapsulesRequest represents the arguments for list_capsules.
type ListCapsulesRequest struct {
	Limit int `json:"limit,omitempty"`
}

// GetCapsuleRequest represents the arguments for get_capsule.
type GetCapsuleRequest struct {
	ID string `json:"id"`
}

// GetDiagnosisRequest represents the arguments for get_diagnosis.
type GetDiagnosisRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleListCapsules handles the cortex_list_capsules tool call.
func (h *Handlers) HandleListCapsules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListCapsulesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	ids, err := h.store.ListRecentIDs(input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"ids": ids})
}

// HandleGetCapsule handles the cortex_get_capsule tool call.
func (h *Handlers) HandleGetCapsule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetCapsuleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	c, err := h.store.Get(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(c)
}

// HandleGetLastCapsule handles the cortex_get_last_capsule tool call.
func (h *Handlers) HandleGetLastCapsule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := h.lastCapsuleID()
	if errRes != nil {
		return errRes, nil
	}

	c, err := h.store.Get(id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(c)
}

// HandleGetDiagnosis handles the cortex_get_diagnosis tool call.
func (h *Handlers) HandleGetDiagnosis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetDiagnosisRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	text, err := h.store.GetDiagnosis(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(text), nil
}

// HandleGetLastDiagnosis handles the cortex_get_last_diagnosis tool
// call.
func (h *Handlers) HandleGetLastDiagnosis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errRes := h.lastCapsuleID()
	if errRes != nil {
		return errRes, nil
	}

	text, err := h.store.GetDiagnosis(id)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(text), nil
}

// lastCapsuleID resolves the newest capsule id, or an error result for
// an empty store.
func (h *Handlers) lastCapsuleID() (string, *mcp.CallToolResult) {
	ids, err := h.store.ListRecentIDs(1)
	if err != nil {
		return "", errorResult(err)
	}
	if len(ids) == 0 {
		return "", errorResult(errors.NewNotFound("no capsules found"))
	}
	return ids[0], nil
}

// Result helpers

// errorResult creates an MCP error result from any error. Uses
// IsError: true so MCP clients recognize failures properly; tool calls
// never surface as protocol errors.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := err.(*errors.CortexError); ok {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// textResult creates a plain-text MCP success result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

// jsonResult creates an MCP success result with a JSON body.
func jsonResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
