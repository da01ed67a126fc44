package schedule

import "time"

// BusyInterval is a time range during which the tenant's calendar is
// occupied. Intervals come from an external source and are not trusted.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval has both bounds and a positive length.
func (b BusyInterval) Valid() bool {
	return !b.Start.IsZero() && !b.End.IsZero() && b.Start.Before(b.End)
}

// Overlaps reports whether the slot and the busy interval intersect under
// half-open semantics: touching endpoints do not overlap.
func Overlaps(slot Slot, busy BusyInterval) bool {
	return slot.Start.Before(busy.End) && slot.End.After(busy.Start)
}

// IsSlotBusy reports whether any busy interval overlaps the slot.
func IsSlotBusy(slot Slot, busy []BusyInterval) bool {
	for _, b := range busy {
		if Overlaps(slot, b) {
			return true
		}
	}
	return false
}

// ResolveBusy returns a copy of slots with availability AND-combined
// against the busy intervals. An existing blocked reason is kept.
func ResolveBusy(slots []Slot, busy []BusyInterval) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	if len(busy) == 0 {
		return out
	}
	for i := range out {
		if IsSlotBusy(out[i], busy) && out[i].Available {
			out[i].Available = false
			out[i].BlockedReason = BlockedBusy
		}
	}
	return out
}

// SanitizeBusy drops invalid intervals and returns the valid ones along
// with the number dropped.
func SanitizeBusy(busy []BusyInterval) ([]BusyInterval, int) {
	valid := make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		if b.Valid() {
			valid = append(valid, b)
		}
	}
	return valid, len(busy) - len(valid)
}
