package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/teemow/slotkeeper/internal/schedule"
)

// summaryTimes is how many slot times a summary lists before "and N more".
// MaxSlotsPerDay lowers it further.
const summaryTimes = 5

// SlotsSummary is a short, human-readable account of a date's availability.
type SlotsSummary struct {
	Date           string          `json:"date"`
	AvailableCount int             `json:"availableCount"`
	Slots          []schedule.Slot `json:"slots,omitempty"`
	Source         string          `json:"source"`
	Degraded       bool            `json:"degraded"`
	Text           string          `json:"summary"`
	NextAvailable  *NextSlot       `json:"nextAvailable,omitempty"`
}

// Summary describes availability on date (YYYY-MM-DD, today when empty).
// At most MaxSlotsPerDay slots are offered; AvailableCount is the full
// count. When the date is fully booked it points to the next available slot.
func (c *Connector) Summary(ctx context.Context, date string) SlotsSummary {
	if date == "" {
		date = schedule.DateKey(c.opts.Now(), c.loc)
	}

	day := c.GetSlotsForDate(ctx, date)
	available := day.Available()
	out := SlotsSummary{
		Date:           date,
		AvailableCount: len(available),
		Slots:          available[:min(len(available), c.maxOffered())],
		Source:         day.Source,
		Degraded:       day.Degraded,
	}

	if len(available) > 0 {
		listed := min(len(available), summaryTimes, c.maxOffered())
		times := make([]string, 0, listed)
		for _, s := range available[:listed] {
			times = append(times, s.Time)
		}
		more := ""
		if extra := len(available) - listed; extra > 0 {
			more = fmt.Sprintf(" and %d more", extra)
		}
		out.Text = fmt.Sprintf("For %s, we have openings at %s%s. Which time works best for you?",
			c.dateLabel(date), strings.Join(times, ", "), more)
		return out
	}

	if next, ok := c.GetNextAvailableSlot(ctx, ""); ok {
		out.NextAvailable = &next
		out.Text = fmt.Sprintf("No openings on %s. The next available slot is %s at %s.",
			c.dateLabel(date), c.dateLabel(next.Date), next.Slot.Time)
		return out
	}

	out.Text = fmt.Sprintf("No openings in the next %d days.", c.cfg.LookAheadDays)
	return out
}

// maxOffered is the number of slots a summary offers for one date.
func (c *Connector) maxOffered() int {
	if c.cfg.MaxSlotsPerDay > 0 {
		return c.cfg.MaxSlotsPerDay
	}
	return schedule.DefaultMaxSlotsPerDay
}

// dateLabel renders a date key as "Monday, March 2", or returns the key
// unchanged when it does not parse.
func (c *Connector) dateLabel(date string) string {
	t, err := schedule.ParseDate(date, c.loc)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2")
}
