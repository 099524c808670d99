// Package mcptool defines the MCP tool-call envelope dispatched over
// /mcp/tool, and the insufficient_scope error shape surfaced to MCP clients.
// Grounded on original_source/src/mcp/mod.rs (ToolRequest, ToolResponse,
// ResponseStatus, required_scope_for_operation, handle_calendar_error).
package mcptool

import "github.com/kamekamek/googlecalendar-mcp/pkg/calendar"

// Operation identifies which calendar action a ToolRequest invokes. The
// wire tag is "operation" (rename_all = snake_case in the original).
type Operation string

const (
	OperationList   Operation = "list"
	OperationGet    Operation = "get"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// ToolRequest is the /mcp/tool request body. Fields not applicable to the
// operation are left zero-valued; handlers select on Operation.
type ToolRequest struct {
	Operation  Operation                 `json:"operation"`
	UserID     string                    `json:"user_id"`
	EventID    string                    `json:"event_id,omitempty"`
	CalendarID string                    `json:"calendar_id,omitempty"`
	Params     calendar.ListEventsParams `json:"params,omitempty"`
	Payload    calendar.EventPayload     `json:"payload,omitempty"`
}

// ResponseStatus mirrors the original's SCREAMING_SNAKE_CASE wire values.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "SUCCESS"
	StatusError   ResponseStatus = "ERROR"
)

// ToolResponse is the /mcp/tool response envelope.
type ToolResponse struct {
	Status ResponseStatus `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Success builds a successful ToolResponse.
func Success(data any) ToolResponse {
	return ToolResponse{Status: StatusSuccess, Data: data}
}

// Error builds a failed ToolResponse.
func Error(message string) ToolResponse {
	return ToolResponse{Status: StatusError, Error: message}
}

// RequiredScopeForOperation returns the minimum OAuth scope an operation
// needs. All four current operations share one scope; the switch is kept
// (rather than collapsed to a constant) because list/get and create/update
// were deliberately distinguished in the original and may diverge later.
func RequiredScopeForOperation(op Operation) string {
	switch op {
	case OperationList, OperationGet, OperationCreate, OperationUpdate:
		return "https://www.googleapis.com/auth/calendar.events"
	default:
		return "https://www.googleapis.com/auth/calendar.events"
	}
}

// InsufficientScopeData builds the structured data payload a 400
// insufficient_scope error carries, so MCP clients can programmatically
// detect it via the __mcp_oauth_error marker.
func InsufficientScopeData(op Operation, description string) map[string]any {
	return map[string]any{
		"__mcp_oauth_error": "insufficient_scope",
		"required_scope":    RequiredScopeForOperation(op),
		"description":       description,
		"operation":         string(op),
	}
}
