package schedule

import "time"

// BlockedReason explains why a slot is not bookable.
type BlockedReason string

const (
	BlockedNone              BlockedReason = ""
	BlockedMinAdvanceBooking BlockedReason = "min_advance_booking"
	BlockedBusy              BlockedReason = "busy"
)

// Slot is a fixed-duration bookable window within business hours.
type Slot struct {
	Time            string        `json:"time"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	DurationMinutes int           `json:"durationMinutes"`
	BufferMinutes   int           `json:"bufferMinutes"`
	Available       bool          `json:"available"`
	BlockedReason   BlockedReason `json:"blockedReason,omitempty"`
	ServiceIDs      []string      `json:"serviceIds,omitempty"`
}

// GenerateDaySlots returns the ordered candidate slots for day's date in
// the tenant's time zone. Slots starting at or before now plus the minimum
// advance are marked unavailable.
func GenerateDaySlots(day time.Time, cfg BusinessHoursConfig, now time.Time) []Slot {
	open, err := ParseClock(cfg.Start)
	if err != nil {
		return nil
	}
	closing, err := ParseClock(cfg.End)
	if err != nil {
		return nil
	}
	if cfg.SlotDurationMinutes <= 0 || cfg.BufferMinutes < 0 {
		return nil
	}

	loc := cfg.Location()
	opening := open.On(day, loc)
	closesAt := closing.On(day, loc)
	duration := time.Duration(cfg.SlotDurationMinutes) * time.Minute
	stride := duration + time.Duration(cfg.BufferMinutes)*time.Minute
	threshold := now.Add(time.Duration(cfg.MinAdvanceBookingMinutes) * time.Minute)
	services := fittingServices(cfg)

	var slots []Slot
	for start := opening; !start.Add(duration).After(closesAt); start = start.Add(stride) {
		slot := Slot{
			Time:            start.Format("15:04"),
			Start:           start,
			End:             start.Add(duration),
			DurationMinutes: cfg.SlotDurationMinutes,
			BufferMinutes:   cfg.BufferMinutes,
			Available:       true,
			ServiceIDs:      services,
		}
		if !start.After(threshold) {
			slot.Available = false
			slot.BlockedReason = BlockedMinAdvanceBooking
		}
		slots = append(slots, slot)
	}
	return slots
}

// fittingServices lists the services whose duration fits in one slot.
// Services without a duration fit any slot.
func fittingServices(cfg BusinessHoursConfig) []string {
	var ids []string
	for _, s := range cfg.Services {
		if s.DurationMinutes <= cfg.SlotDurationMinutes {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// HasAvailable reports whether any slot in the list can be booked.
func HasAvailable(slots []Slot) bool {
	for _, s := range slots {
		if s.Available {
			return true
		}
	}
	return false
}

// OffersService reports whether the slot can host the given service. An
// empty service id matches every slot.
func (s Slot) OffersService(serviceID string) bool {
	if serviceID == "" {
		return true
	}
	for _, id := range s.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}
