package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotkeeper/internal/tools/availability_tools"
)

func TestGetCategoryFromToolName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{name: availability_tools.ToolRegisterTenant, expected: "Tenant Tools"},
		{name: availability_tools.ToolStatus, expected: "Tenant Tools"},
		{name: availability_tools.ToolGetSlots, expected: "Availability Tools"},
		{name: availability_tools.ToolGetRange, expected: "Availability Tools"},
		{name: availability_tools.ToolNextSlot, expected: "Availability Tools"},
		{name: availability_tools.ToolBook, expected: "Booking Tools"},
		{name: availability_tools.ToolCancel, expected: "Booking Tools"},
		{name: "unknown_tool", expected: "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getCategoryFromToolName(tt.name))
		})
	}
}

func TestListAllTools_IncludesWriteTools(t *testing.T) {
	tools, err := listAllTools(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		availability_tools.ToolRegisterTenant,
		availability_tools.ToolGetSlots,
		availability_tools.ToolGetRange,
		availability_tools.ToolNextSlot,
		availability_tools.ToolStatus,
		availability_tools.ToolBook,
		availability_tools.ToolCancel,
	}, names)
}

func TestGenerateToolMarkdown(t *testing.T) {
	tool := mcp.NewTool("availability_cancel",
		mcp.WithDescription("Cancel a booking"),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant identifier")),
		mcp.WithString("reason"),
	)

	md := generateToolMarkdown(tool)
	assert.Contains(t, md, "### availability_cancel")
	assert.Contains(t, md, "Cancel a booking")
	assert.Contains(t, md, "| Argument | Type | Required | Description |")
	assert.Contains(t, md, "| `tenant_id` | string | yes | Tenant identifier |")
	assert.Contains(t, md, "| `reason` | string | no |  |")
	assert.Less(t, strings.Index(md, "`tenant_id`"), strings.Index(md, "`reason`"), "required arguments come first")
}

func TestRunGenerateDocs(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runGenerateDocs(context.Background(), &out, ""))
	md := out.String()
	assert.Contains(t, md, "# MCP Tools Reference")
	assert.Contains(t, md, "- [Availability Tools](#availability-tools)")
	assert.Contains(t, md, "## Tenants")
	assert.Contains(t, md, "### "+availability_tools.ToolBook)

	path := filepath.Join(t.TempDir(), "tools.md")
	require.NoError(t, runGenerateDocs(context.Background(), nil, path))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, md, string(written))
}
