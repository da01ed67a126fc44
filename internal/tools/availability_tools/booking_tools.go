package availability_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/server"
	"github.com/teemow/slotkeeper/internal/tools/common"
)

func bookingTools(sc *server.ServerContext) []mcpserver.ServerTool {
	bookTool := mcp.NewTool(ToolBook,
		mcp.WithDescription("Book an appointment for a registered tenant by creating a calendar event"),
		tenantIDOption(),
		mcp.WithString("date",
			mcp.Required(),
			mcp.Description("Appointment date, YYYY-MM-DD"),
		),
		mcp.WithString("time",
			mcp.Required(),
			mcp.Description("Start time, HH:MM in the tenant's time zone"),
		),
		mcp.WithString("client_name",
			mcp.Description("Client's name"),
		),
		mcp.WithString("client_email",
			mcp.Description("Client's email; the client is invited and notified when set"),
		),
		mcp.WithString("client_phone",
			mcp.Description("Client's phone number"),
		),
		mcp.WithString("service_id",
			mcp.Description("Configured service to book; sets the duration"),
		),
		mcp.WithString("service_name",
			mcp.Description("Service name shown in the event description"),
		),
		mcp.WithNumber("duration_minutes",
			mcp.Description("Appointment length in minutes (default: the service or slot duration)"),
		),
		mcp.WithString("summary",
			mcp.Description("Event title (default: 'Appointment - <client name>')"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
	)

	cancelTool := mcp.NewTool(ToolCancel,
		mcp.WithDescription("Cancel a booked appointment, notifying attendees"),
		tenantIDOption(),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("Event id returned by availability_book"),
		),
	)

	return []mcpserver.ServerTool{
		{
			Tool: bookTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleBook(ctx, request, sc)
			},
		},
		{
			Tool: cancelTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleCancel(ctx, request, sc)
			},
		},
	}
}

func handleBook(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tenantID, errResult := requireTenant(args)
	if errResult != nil {
		return errResult, nil
	}
	date, err := common.RequiredStringArg(args, "date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	clock, err := common.RequiredStringArg(args, "time")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration, err := common.IntArg(args, "duration_minutes", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	details := connector.BookingDetails{
		ClientName:      common.StringArg(args, "client_name"),
		ClientEmail:     common.StringArg(args, "client_email"),
		ClientPhone:     common.StringArg(args, "client_phone"),
		ServiceID:       common.StringArg(args, "service_id"),
		ServiceName:     common.StringArg(args, "service_name"),
		DurationMinutes: duration,
		Summary:         common.StringArg(args, "summary"),
		Description:     common.StringArg(args, "description"),
	}

	res := sc.Registry().Book(ctx, tenantID, date, clock, details)
	if !res.Success {
		return jsonError(res)
	}
	return jsonResult(res)
}

func handleCancel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tenantID, errResult := requireTenant(args)
	if errResult != nil {
		return errResult, nil
	}
	eventID, err := common.RequiredStringArg(args, "event_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := sc.Registry().Cancel(ctx, tenantID, eventID)
	if !res.Success {
		return jsonError(res)
	}
	return jsonResult(res)
}
