// Package schedule turns business-hours configuration into bookable slots.
//
// Everything in this package is pure: slot generation and busy-interval
// resolution depend only on their arguments (including the caller's notion
// of "now"), which keeps the availability rules easy to test in isolation.
//
// Example usage:
//
//	cfg := schedule.DefaultBusinessHours()
//	slots := schedule.GenerateDaySlots(day, cfg, time.Now())
//	slots = schedule.ResolveBusy(slots, busy)
package schedule
