// Package availability_tools exposes the tenant registry as MCP tools.
//
// Read tools (slots, ranges, next slot, status) and tenant registration are
// always available. Booking and cancellation change the tenant's calendar
// and are only registered when the server runs with write operations
// enabled.
package availability_tools
