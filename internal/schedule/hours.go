package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Default business-hours values applied to tenants registered without an
// explicit configuration.
const (
	DefaultCalendarID        = "primary"
	DefaultStart             = "09:00"
	DefaultEnd               = "18:00"
	DefaultSlotDuration      = 60
	DefaultBuffer            = 5
	DefaultMinAdvanceBooking = 24 * 60
	DefaultLookAheadDays     = 14
	DefaultMaxSlotsPerDay    = 10
	DefaultTimezone          = "Africa/Casablanca"
)

// DateLayout is the layout of date keys used throughout availability data.
const DateLayout = "2006-01-02"

// DefaultWorkDays is Monday through Saturday.
var DefaultWorkDays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
}

// Service is a bookable service offered by a tenant.
type Service struct {
	ID              string `json:"id" mapstructure:"id"`
	Name            string `json:"name" mapstructure:"name"`
	DurationMinutes int    `json:"durationMinutes" mapstructure:"duration_minutes"`
}

// BusinessHoursConfig describes when a tenant accepts appointments.
// A connector keeps its own copy; changing hours means registering a new
// connector.
type BusinessHoursConfig struct {
	CalendarID               string         `json:"calendarId" mapstructure:"calendar_id"`
	Start                    string         `json:"start" mapstructure:"start"`
	End                      string         `json:"end" mapstructure:"end"`
	WorkDays                 []time.Weekday `json:"workDays" mapstructure:"work_days"`
	SlotDurationMinutes      int            `json:"slotDurationMinutes" mapstructure:"slot_duration_minutes"`
	BufferMinutes            int            `json:"bufferMinutes" mapstructure:"buffer_minutes"`
	MinAdvanceBookingMinutes int            `json:"minAdvanceBookingMinutes" mapstructure:"min_advance_booking_minutes"`
	LookAheadDays            int            `json:"lookAheadDays" mapstructure:"look_ahead_days"`
	MaxSlotsPerDay           int            `json:"maxSlotsPerDay" mapstructure:"max_slots_per_day"`
	Timezone                 string         `json:"timezone" mapstructure:"timezone"`
	Services                 []Service      `json:"services,omitempty" mapstructure:"services"`
}

// DefaultBusinessHours returns the configuration used for tenants that did
// not supply one.
func DefaultBusinessHours() BusinessHoursConfig {
	return BusinessHoursConfig{
		CalendarID:               DefaultCalendarID,
		Start:                    DefaultStart,
		End:                      DefaultEnd,
		WorkDays:                 append([]time.Weekday(nil), DefaultWorkDays...),
		SlotDurationMinutes:      DefaultSlotDuration,
		BufferMinutes:            DefaultBuffer,
		MinAdvanceBookingMinutes: DefaultMinAdvanceBooking,
		LookAheadDays:            DefaultLookAheadDays,
		MaxSlotsPerDay:           DefaultMaxSlotsPerDay,
		Timezone:                 DefaultTimezone,
	}
}

// WithDefaults returns a copy with zero-valued structural fields filled in.
// Buffer and minimum advance are left alone since zero is meaningful there.
func (c BusinessHoursConfig) WithDefaults() BusinessHoursConfig {
	out := c.clone()
	if out.CalendarID == "" {
		out.CalendarID = DefaultCalendarID
	}
	if out.Start == "" {
		out.Start = DefaultStart
	}
	if out.End == "" {
		out.End = DefaultEnd
	}
	if len(out.WorkDays) == 0 {
		out.WorkDays = append([]time.Weekday(nil), DefaultWorkDays...)
	}
	if out.SlotDurationMinutes == 0 {
		out.SlotDurationMinutes = DefaultSlotDuration
	}
	if out.LookAheadDays == 0 {
		out.LookAheadDays = DefaultLookAheadDays
	}
	if out.MaxSlotsPerDay == 0 {
		out.MaxSlotsPerDay = DefaultMaxSlotsPerDay
	}
	if out.Timezone == "" {
		out.Timezone = DefaultTimezone
	}
	return out
}

func (c BusinessHoursConfig) clone() BusinessHoursConfig {
	out := c
	out.WorkDays = append([]time.Weekday(nil), c.WorkDays...)
	out.Services = append([]Service(nil), c.Services...)
	return out
}

// Validate reports the first problem found in the configuration.
func (c BusinessHoursConfig) Validate() error {
	open, err := ParseClock(c.Start)
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	closing, err := ParseClock(c.End)
	if err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}
	if closing.Minutes() <= open.Minutes() {
		return fmt.Errorf("end %s must be after start %s", c.End, c.Start)
	}
	if c.SlotDurationMinutes <= 0 {
		return errors.New("slot duration must be positive")
	}
	if c.BufferMinutes < 0 {
		return errors.New("buffer must not be negative")
	}
	if c.MinAdvanceBookingMinutes < 0 {
		return errors.New("minimum advance booking must not be negative")
	}
	if c.LookAheadDays < 0 {
		return errors.New("look-ahead days must not be negative")
	}
	for _, d := range c.WorkDays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid work day %d", d)
		}
	}
	for _, s := range c.Services {
		if s.ID == "" {
			return errors.New("service id must not be empty")
		}
		if s.DurationMinutes < 0 {
			return fmt.Errorf("service %s has negative duration", s.ID)
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the tenant's time zone, falling back to UTC when the
// configured name cannot be loaded.
func (c BusinessHoursConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWorkDay reports whether appointments are accepted on the given weekday.
func (c BusinessHoursConfig) IsWorkDay(d time.Weekday) bool {
	for _, wd := range c.WorkDays {
		if wd == d {
			return true
		}
	}
	return false
}

// Service returns the configured service with the given id.
func (c BusinessHoursConfig) Service(id string) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an HH:MM string.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("clock %q is not HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("clock %q has invalid hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("clock %q has invalid minute", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant this clock time falls on for the given date in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD date key as midnight in loc.
func ParseDate(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// DateKey formats t as a YYYY-MM-DD key in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// StartOfDay returns midnight of t's date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
