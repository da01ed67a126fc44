package availability_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/google"
	"github.com/teemow/slotkeeper/internal/registry"
	"github.com/teemow/slotkeeper/internal/schedule"
	"github.com/teemow/slotkeeper/internal/server"
	"github.com/teemow/slotkeeper/internal/tools/common"
)

func tenantTools(sc *server.ServerContext) []mcpserver.ServerTool {
	registerTool := mcp.NewTool(ToolRegisterTenant,
		mcp.WithDescription("Register a tenant with its business hours, replacing any existing registration. Unset fields use the server defaults."),
		tenantIDOption(),
		mcp.WithString("calendar_id",
			mcp.Description("Calendar to read busy times from and book into (default: 'primary')"),
		),
		mcp.WithString("start",
			mcp.Description("Opening time, HH:MM (e.g., '09:00')"),
		),
		mcp.WithString("end",
			mcp.Description("Closing time, HH:MM (e.g., '18:00')"),
		),
		mcp.WithString("work_days",
			mcp.Description("Comma-separated weekdays, 0=Sunday to 6=Saturday (e.g., '1,2,3,4,5')"),
		),
		mcp.WithNumber("slot_duration_minutes",
			mcp.Description("Length of a slot in minutes"),
		),
		mcp.WithNumber("buffer_minutes",
			mcp.Description("Gap between consecutive slots in minutes"),
		),
		mcp.WithNumber("min_advance_booking_minutes",
			mcp.Description("Slots starting sooner than this are not bookable"),
		),
		mcp.WithNumber("look_ahead_days",
			mcp.Description("How many days ahead availability is computed"),
		),
		mcp.WithNumber("max_slots_per_day",
			mcp.Description("Most slots a daily summary offers"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA time zone of the business (e.g., 'Africa/Casablanca')"),
		),
		mcp.WithString("services",
			mcp.Description(`JSON array of services, e.g. [{"id":"cut","name":"Haircut","durationMinutes":30}]`),
		),
	)

	statusTool := mcp.NewTool(ToolStatus,
		mcp.WithDescription("Show a tenant's connection and cache status, or registry totals when no tenant is given"),
		mcp.WithString(common.ArgTenantID,
			mcp.Description("Tenant identifier (optional)"),
		),
	)

	return []mcpserver.ServerTool{
		{
			Tool: registerTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleRegisterTenant(ctx, request, sc)
			},
		},
		{
			Tool: statusTool,
			Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleStatus(ctx, request, sc)
			},
		},
	}
}

func handleRegisterTenant(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	tenantID, errResult := requireTenant(args)
	if errResult != nil {
		return errResult, nil
	}
	if err := google.ValidateTenantID(tenantID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hours, err := hoursFromArgs(args, sc.Registry().DefaultHours())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	conn, err := sc.Registry().Register(ctx, tenantID, hours)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(conn.Status())
}

// hoursFromArgs overlays the given arguments on base.
func hoursFromArgs(args map[string]interface{}, base schedule.BusinessHoursConfig) (schedule.BusinessHoursConfig, error) {
	h := base
	if v := common.StringArg(args, "calendar_id"); v != "" {
		h.CalendarID = v
	}
	if v := common.StringArg(args, "start"); v != "" {
		h.Start = v
	}
	if v := common.StringArg(args, "end"); v != "" {
		h.End = v
	}
	if v := common.StringArg(args, "timezone"); v != "" {
		h.Timezone = v
	}

	days, err := common.IntListArg(args, "work_days")
	if err != nil {
		return h, err
	}
	if days != nil {
		h.WorkDays = make([]time.Weekday, 0, len(days))
		for _, d := range days {
			h.WorkDays = append(h.WorkDays, time.Weekday(d))
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"slot_duration_minutes", &h.SlotDurationMinutes},
		{"buffer_minutes", &h.BufferMinutes},
		{"min_advance_booking_minutes", &h.MinAdvanceBookingMinutes},
		{"look_ahead_days", &h.LookAheadDays},
		{"max_slots_per_day", &h.MaxSlotsPerDay},
	}
	for _, f := range ints {
		v, err := common.IntArg(args, f.name, *f.dst)
		if err != nil {
			return h, err
		}
		*f.dst = v
	}

	if raw := common.StringArg(args, "services"); raw != "" {
		var services []schedule.Service
		if err := json.Unmarshal([]byte(raw), &services); err != nil {
			return h, fmt.Errorf("services must be a JSON array: %w", err)
		}
		h.Services = services
	}

	if err := h.WithDefaults().Validate(); err != nil {
		return h, err
	}
	return h, nil
}

type registryStatus struct {
	registry.Stats
	Tenants []string `json:"tenants"`
}

func handleStatus(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	reg := sc.Registry()

	tenantID := common.GetTenantFromArgs(args)
	if tenantID == "" {
		return jsonResult(registryStatus{Stats: reg.Stats(), Tenants: reg.Tenants()})
	}

	st, ok := reg.Status(tenantID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("tenant %q is not registered", tenantID)), nil
	}
	return jsonResult(st)
}

// tenantLocation returns the time zone of a tenant, creating the tenant
// with the defaults when it is unknown.
func tenantLocation(ctx context.Context, reg *registry.Registry, tenantID string) (*connector.Connector, *time.Location, error) {
	conn, err := reg.GetOrCreate(ctx, tenantID, nil)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Config().Location(), nil
}
