package availability_tools

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotkeeper/internal/server"
	"github.com/teemow/slotkeeper/internal/tools/common"
)

// Tool names.
const (
	ToolRegisterTenant = "availability_register_tenant"
	ToolGetSlots       = "availability_get_slots"
	ToolGetRange       = "availability_get_range"
	ToolNextSlot       = "availability_next_slot"
	ToolStatus         = "availability_status"
	ToolBook           = "availability_book"
	ToolCancel         = "availability_cancel"
)

// RegisterAvailabilityTools registers the availability tools with the MCP
// server. With readOnly set, booking and cancellation are left out.
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}
	s.AddTools(Tools(sc, readOnly)...)
	return nil
}

// Tools returns the instrumented availability tools.
func Tools(sc *server.ServerContext, readOnly bool) []mcpserver.ServerTool {
	tools := append(tenantTools(sc), slotTools(sc)...)
	if !readOnly {
		tools = append(tools, bookingTools(sc)...)
	}
	for i := range tools {
		tools[i].Handler = common.InstrumentedToolHandler(tools[i].Tool.Name, sc, tools[i].Handler)
	}
	return tools
}

func tenantIDOption() mcp.ToolOption {
	return mcp.WithString(common.ArgTenantID,
		mcp.Required(),
		mcp.Description("Tenant (business) identifier, e.g. 'salon-1'"),
	)
}

func requireTenant(args map[string]interface{}) (string, *mcp.CallToolResult) {
	tenantID := common.GetTenantFromArgs(args)
	if tenantID == "" {
		return "", mcp.NewToolResultError("tenant_id is required")
	}
	return tenantID, nil
}

// jsonResult renders v as indented JSON text.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// jsonError renders v as indented JSON text in an error result.
func jsonError(v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultError(string(body)), nil
}
