package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/schedule"
)

// staticEnv makes every tenant fall back to business hours alone.
func staticEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SLOTKEEPER_CREDENTIALS_DIR", t.TempDir())
	t.Setenv("SLOTKEEPER_DEFAULTS_TIMEZONE", "UTC")
	for _, key := range []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REFRESH_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestRunSlots_StaticTenant(t *testing.T) {
	staticEnv(t)

	var out, errOut bytes.Buffer
	err := runSlots(context.Background(), &out, &errOut, slotsOptions{
		tenant: "salon-1",
		date:   "2099-03-02",
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "date: 2099-03-02")
	assert.Contains(t, text, "source: static")
	assert.NotContains(t, text, "degraded")
	assert.Contains(t, text, "TIME")
	assert.Contains(t, text, "available")
}

func TestRunSlots_InvalidDate(t *testing.T) {
	staticEnv(t)

	var out, errOut bytes.Buffer
	err := runSlots(context.Background(), &out, &errOut, slotsOptions{tenant: "salon-1", date: "02/03/2099"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected YYYY-MM-DD")
	assert.Empty(t, out.String())
}

func TestSlotsCmd_RequiresTenant(t *testing.T) {
	cmd := newSlotsCmd()
	cmd.SetArgs([]string{"--date", "2099-03-02"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestPrintSlots(t *testing.T) {
	start := time.Date(2099, 3, 2, 9, 0, 0, 0, time.UTC)
	slots := []schedule.Slot{
		{Time: "09:00", Start: start, End: start.Add(time.Hour), Available: true, ServiceIDs: []string{"cut", "color"}},
		{Time: "10:05", Start: start.Add(65 * time.Minute), End: start.Add(125 * time.Minute), BlockedReason: schedule.BlockedBusy},
	}
	summary := connector.SlotsSummary{
		Date:           "2099-03-02",
		AvailableCount: 1,
		Source:         connector.SourceExternal,
		Degraded:       true,
		Text:           "1 slot available",
	}
	day := connector.DaySlots{Date: "2099-03-02", Slots: slots}

	tests := []struct {
		name      string
		all       bool
		contains  []string
		forbidden []string
	}{
		{
			name:      "available only",
			contains:  []string{"1 slot available", "source: external (degraded)", "09:00", "10:00", "cut,color"},
			forbidden: []string{"10:05", "busy"},
		},
		{
			name:     "all slots",
			all:      true,
			contains: []string{"09:00", "10:05", "busy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, printSlots(&out, summary, day, tt.all))
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
			for _, s := range tt.forbidden {
				assert.NotContains(t, out.String(), s)
			}
		})
	}
}

func TestPrintSlots_NoSlots(t *testing.T) {
	var out bytes.Buffer
	summary := connector.SlotsSummary{Date: "2099-03-01", Source: connector.SourceStatic, Text: "closed"}
	require.NoError(t, printSlots(&out, summary, connector.DaySlots{Date: "2099-03-01"}, false))
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))
	assert.NotContains(t, out.String(), "TIME")
}
