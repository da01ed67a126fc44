package availability_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/schedule"
	"github.com/teemow/slotkeeper/internal/server"
	"github.com/teemow/slotkeeper/internal/tools/common"
)

func slotTools(sc *server.ServerContext) []mcpserver.ServerTool {
	getSlotsTool := mcp.NewTool(ToolGetSlots,
		mcp.WithDescription("Summarize a tenant's open appointment slots on a date. Unknown tenants are created with the default business hours."),
		tenantIDOption(),
		mcp.WithString("date",
			mcp.Description("Date in YYYY-MM-DD format (default: today in the tenant's time zone)"),
		),
	)

	getRangeTool := mcp.NewTool(ToolGetRange,
		mcp.WithDescription("Compute a tenant's availability over a date range, querying the calendar now"),
		tenantIDOption(),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("First date, YYYY-MM-DD"),
		),
		mcp.WithString("to",
			mcp.Description("Last date, YYYY-MM-DD (default: the tenant's look-ahead window)"),
		),
	)

	nextSlotTool := mcp.NewTool(ToolNextSlot,
		mcp.WithDescription("Find a tenant's earliest bookable slot, optionally for a service"),
		tenantIDOption(),
		mcp.WithString("service_id",
			mcp.Description("Only consider slots long enough for this service"),
		),
	)

	return []mcpserver.ServerTool{
		{
			Tool: getSlotsTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleGetSlots(ctx, request, sc)
			},
		},
		{
			Tool: getRangeTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleGetRange(ctx, request, sc)
			},
		},
		{
			Tool: nextSlotTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleNextSlot(ctx, request, sc)
			},
		},
	}
}

func handleGetSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tenantID, errResult := requireTenant(args)
	if errResult != nil {
		return errResult, nil
	}

	date := common.StringArg(args, "date")
	if date != "" {
		if _, err := time.Parse(schedule.DateLayout, date); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid date format (expected YYYY-MM-DD): %s", date)), nil
		}
	}

	summary, err := sc.Registry().GetSlots(ctx, tenantID, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summary)
}

func handleGetRange(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tenantID, errResult := requireTenant(args)
	if errResult != nil {
		return errResult, nil
	}

	fromStr, err := common.RequiredStringArg(args, "from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	_, loc, err := tenantLocation(ctx, sc.Registry(), tenantID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	from, err := schedule.ParseDate(fromStr, loc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid from date (expected YYYY-MM-DD): %s", fromStr)), nil
	}
	var to time.Time
	if toStr := common.StringArg(args, "to"); toStr != "" {
		to, err = schedule.ParseDate(toStr, loc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid to date (expected YYYY-MM-DD): %s", toStr)), nil
		}
	}

	snap, err := sc.Registry().GetAvailableSlots(ctx, tenantID, from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap)
}

type nextSlotResult struct {
	Found   bool                `json:"found"`
	Next    *connector.NextSlot `json:"next,omitempty"`
	Message string              `json:"message,omitempty"`
}

func handleNextSlot(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tenantID, errResult := requireTenant(args)
	if errResult != nil {
		return errResult, nil
	}

	next, ok, err := sc.Registry().NextAvailableSlot(ctx, tenantID, common.StringArg(args, "service_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return jsonResult(nextSlotResult{Message: "No openings in the look-ahead window."})
	}
	return jsonResult(nextSlotResult{Found: true, Next: &next})
}
