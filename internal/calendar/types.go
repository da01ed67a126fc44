package calendar

import (
	"context"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// In-band error reasons the free/busy API reports per calendar.
const (
	ReasonGroupTooBig               = "groupTooBig"
	ReasonTooManyCalendarsRequested = "tooManyCalendarsRequested"
	ReasonNotFound                  = "notFound"
	ReasonInternalError             = "internalError"
)

// Send-updates modes for event changes.
const (
	SendUpdatesAll  = "all"
	SendUpdatesNone = "none"
)

// Provider is the calendar backend used by the availability engine.
type Provider interface {
	QueryFreeBusy(ctx context.Context, query FreeBusyQuery) ([]FreeBusyInfo, error)
	InsertEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// FreeBusyQuery describes a free/busy request.
type FreeBusyQuery struct {
	TimeMin     time.Time
	TimeMax     time.Time
	TimeZone    string
	CalendarIDs []string
}

// FreeBusyInfo represents free/busy information for one calendar.
type FreeBusyInfo struct {
	Calendar string
	Busy     []TimeRange
	// Errors holds in-band error reasons reported for this calendar.
	Errors []string
	// Malformed counts busy entries that could not be parsed.
	Malformed int
}

// TimeRange represents a time range.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// EventInput represents input for creating a calendar event.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
	// SendUpdates is SendUpdatesAll or SendUpdatesNone.
	SendUpdates string
}

// EventSummary is the provider's view of a created event.
type EventSummary struct {
	ID       string
	Summary  string
	Status   string
	HTMLLink string
	Start    time.Time
	End      time.Time
}

func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}

	summary := EventSummary{
		ID:       event.Id,
		Summary:  event.Summary,
		Status:   event.Status,
		HTMLLink: event.HtmlLink,
	}
	if event.Start != nil && event.Start.DateTime != "" {
		summary.Start, _ = time.Parse(time.RFC3339, event.Start.DateTime)
	}
	if event.End != nil && event.End.DateTime != "" {
		summary.End, _ = time.Parse(time.RFC3339, event.End.DateTime)
	}
	return summary
}

func toFreeBusyInfo(id string, cal calendar.FreeBusyCalendar) FreeBusyInfo {
	info := FreeBusyInfo{Calendar: id}
	for _, busy := range cal.Busy {
		if busy == nil {
			info.Malformed++
			continue
		}
		start, err1 := time.Parse(time.RFC3339, busy.Start)
		end, err2 := time.Parse(time.RFC3339, busy.End)
		if err1 != nil || err2 != nil {
			info.Malformed++
			continue
		}
		info.Busy = append(info.Busy, TimeRange{Start: start, End: end})
	}
	for _, e := range cal.Errors {
		if e != nil {
			info.Errors = append(info.Errors, e.Reason)
		}
	}
	return info
}
