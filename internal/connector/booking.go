package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/events"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/logging"
	"github.com/teemow/slotkeeper/internal/retry"
	"github.com/teemow/slotkeeper/internal/schedule"
)

// FailureCode classifies a failed booking or cancellation.
type FailureCode string

const (
	FailureNotConnected        FailureCode = "not_connected"
	FailureInvalidRequest      FailureCode = "invalid_request"
	FailureProviderRejected    FailureCode = "provider_rejected"
	FailureTenantNotRegistered FailureCode = "tenant_not_registered"
)

// User-facing messages.
const (
	msgNotConnected    = "I can't confirm the booking right now."
	msgBookingFailed   = "Sorry, something went wrong while booking. Please try again."
	msgCancelled       = "The appointment was cancelled."
	msgCancelFailed    = "Sorry, the appointment could not be cancelled. Please try again."
	msgNotRegistered   = "This business is not set up for online booking."
	defaultClientLabel = "Client"
	notAvailable       = "N/A"
)

// Failure describes why a booking operation did not succeed.
type Failure struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// BookingDetails describes the client and service for a booking.
type BookingDetails struct {
	ClientName      string `json:"clientName,omitempty" validate:"max=200"`
	ClientEmail     string `json:"clientEmail,omitempty" validate:"omitempty,email"`
	ClientPhone     string `json:"clientPhone,omitempty" validate:"max=32"`
	ServiceID       string `json:"serviceId,omitempty" validate:"max=128"`
	ServiceName     string `json:"serviceName,omitempty" validate:"max=200"`
	DurationMinutes int    `json:"durationMinutes,omitempty" validate:"gte=0,lte=1440"`
	Summary         string `json:"summary,omitempty" validate:"max=300"`
	Description     string `json:"description,omitempty" validate:"max=4000"`
}

// BookingResult is the outcome of Book.
type BookingResult struct {
	Success  bool      `json:"success"`
	EventID  string    `json:"eventId,omitempty"`
	HTMLLink string    `json:"htmlLink,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Message  string    `json:"message"`
	Error    *Failure  `json:"error,omitempty"`
}

// CancelResult is the outcome of Cancel.
type CancelResult struct {
	Success bool     `json:"success"`
	EventID string   `json:"eventId,omitempty"`
	Message string   `json:"message"`
	Error   *Failure `json:"error,omitempty"`
}

var validate = validator.New()

// NotRegisteredBooking is returned for bookings routed to an unknown tenant.
func NotRegisteredBooking() BookingResult {
	return BookingResult{
		Message: msgNotRegistered,
		Error:   &Failure{Code: FailureTenantNotRegistered, Message: "tenant is not registered"},
	}
}

// NotRegisteredCancel is returned for cancellations routed to an unknown tenant.
func NotRegisteredCancel(eventID string) CancelResult {
	return CancelResult{
		EventID: eventID,
		Message: msgNotRegistered,
		Error:   &Failure{Code: FailureTenantNotRegistered, Message: "tenant is not registered"},
	}
}

func bookingFailure(code FailureCode, message, detail string) BookingResult {
	return BookingResult{Message: message, Error: &Failure{Code: code, Message: detail}}
}

// Book creates a calendar event for the slot starting at clock (HH:MM) on
// date (YYYY-MM-DD). On success the cached availability is dropped before
// the result is returned.
func (c *Connector) Book(ctx context.Context, date, clock string, details BookingDetails) BookingResult {
	result := c.book(ctx, date, clock, details)
	outcome := instrumentation.StatusSuccess
	if result.Error != nil {
		outcome = string(result.Error.Code)
	}
	c.opts.Metrics.RecordBooking(ctx, c.tenantID, instrumentation.OperationBook, outcome)
	return result
}

func (c *Connector) book(ctx context.Context, date, clock string, details BookingDetails) BookingResult {
	provider := c.currentProvider()
	if provider == nil {
		return bookingFailure(FailureNotConnected, msgNotConnected, "calendar is not connected")
	}

	if err := validate.Struct(details); err != nil {
		return bookingFailure(FailureInvalidRequest, msgBookingFailed, describeValidation(err))
	}
	day, err := schedule.ParseDate(date, c.loc)
	if err != nil {
		return bookingFailure(FailureInvalidRequest, msgBookingFailed, err.Error())
	}
	at, err := schedule.ParseClock(clock)
	if err != nil {
		return bookingFailure(FailureInvalidRequest, msgBookingFailed, err.Error())
	}

	var service schedule.Service
	if details.ServiceID != "" {
		var ok bool
		service, ok = c.cfg.Service(details.ServiceID)
		if !ok {
			return bookingFailure(FailureInvalidRequest, msgBookingFailed,
				fmt.Sprintf("unknown service %q", details.ServiceID))
		}
		if details.ServiceName == "" {
			details.ServiceName = service.Name
		}
	}

	start := at.On(day, c.loc)
	end := start.Add(time.Duration(c.bookingDuration(details, service)) * time.Minute)
	input := c.eventInput(details, start, end)

	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	created, err := retry.Do(callCtx, c.retryPolicy(callCtx, instrumentation.OperationInsertEvent),
		func(ctx context.Context) (*calendar.EventSummary, error) {
			return provider.InsertEvent(ctx, c.cfg.CalendarID, input)
		})
	if err != nil {
		c.logger.Warn("booking failed",
			logging.Date(date),
			logging.ClientHash(details.ClientEmail),
			logging.Err(err))
		return bookingFailure(FailureProviderRejected, msgBookingFailed, providerMessage(err))
	}

	c.Invalidate()

	c.publish(ctx, events.TypeBookingConfirmed, map[string]interface{}{
		"event_id":   created.ID,
		"date":       date,
		"time":       at.String(),
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
		"service_id": details.ServiceID,
	})
	c.publishInvalidated(ctx, "booking")

	c.logger.Info("appointment booked",
		logging.Date(date),
		logging.ClientHash(details.ClientEmail),
		logging.Calendar(c.cfg.CalendarID))

	return BookingResult{
		Success:  true,
		EventID:  created.ID,
		HTMLLink: created.HTMLLink,
		Start:    start,
		End:      end,
		Message:  confirmationMessage(start, details.ClientEmail != ""),
	}
}

// bookingDuration picks the explicit duration, then the service's, then
// the slot duration.
func (c *Connector) bookingDuration(details BookingDetails, service schedule.Service) int {
	switch {
	case details.DurationMinutes > 0:
		return details.DurationMinutes
	case service.DurationMinutes > 0:
		return service.DurationMinutes
	default:
		return c.cfg.SlotDurationMinutes
	}
}

func (c *Connector) eventInput(details BookingDetails, start, end time.Time) calendar.EventInput {
	summary := details.Summary
	if summary == "" {
		name := details.ClientName
		if name == "" {
			name = defaultClientLabel
		}
		summary = "Appointment - " + name
	}

	description := details.Description
	if description == "" {
		lines := []string{
			"Service: " + orNA(details.ServiceName),
			"Client: " + orNA(details.ClientName),
			"Phone: " + orNA(details.ClientPhone),
		}
		if details.ClientEmail != "" {
			lines = append(lines, "Email: "+details.ClientEmail)
		}
		description = strings.Join(lines, "\n")
	}

	input := calendar.EventInput{
		Summary:     summary,
		Description: description,
		Start:       start,
		End:         end,
		TimeZone:    c.cfg.Timezone,
		SendUpdates: calendar.SendUpdatesNone,
	}
	if details.ClientEmail != "" {
		input.Attendees = []string{details.ClientEmail}
		input.SendUpdates = calendar.SendUpdatesAll
	}
	return input
}

// Cancel deletes a previously booked event.
func (c *Connector) Cancel(ctx context.Context, eventID string) CancelResult {
	result := c.cancel(ctx, eventID)
	outcome := instrumentation.StatusSuccess
	if result.Error != nil {
		outcome = string(result.Error.Code)
	}
	c.opts.Metrics.RecordBooking(ctx, c.tenantID, instrumentation.OperationCancel, outcome)
	return result
}

func (c *Connector) cancel(ctx context.Context, eventID string) CancelResult {
	fail := func(code FailureCode, message, detail string) CancelResult {
		return CancelResult{EventID: eventID, Message: message, Error: &Failure{Code: code, Message: detail}}
	}

	provider := c.currentProvider()
	if provider == nil {
		return fail(FailureNotConnected, msgNotConnected, "calendar is not connected")
	}
	if strings.TrimSpace(eventID) == "" {
		return fail(FailureInvalidRequest, msgCancelFailed, "event id is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	err := c.retryPolicy(callCtx, instrumentation.OperationDeleteEvent).Do(callCtx, func(ctx context.Context) error {
		return provider.DeleteEvent(ctx, c.cfg.CalendarID, eventID)
	})
	if err != nil {
		c.logger.Warn("cancellation failed", logging.Err(err))
		return fail(FailureProviderRejected, msgCancelFailed, providerMessage(err))
	}

	c.Invalidate()
	c.publish(ctx, events.TypeBookingCancelled, map[string]interface{}{"event_id": eventID})
	c.publishInvalidated(ctx, "cancellation")

	return CancelResult{Success: true, EventID: eventID, Message: msgCancelled}
}

func (c *Connector) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if err := c.opts.Publisher.Publish(ctx, events.New(eventType, c.tenantID, data)); err != nil {
		c.logger.Warn("failed to publish event", logging.Event(eventType), logging.Err(err))
	}
}

func (c *Connector) publishInvalidated(ctx context.Context, reason string) {
	c.publish(ctx, events.TypeAvailabilityInvalidated, map[string]interface{}{"reason": reason})
}

func confirmationMessage(start time.Time, emailed bool) string {
	msg := fmt.Sprintf("Your appointment is confirmed for %s at %s.",
		start.Format("Monday, January 2"), start.Format("15:04"))
	if emailed {
		msg += " You will receive a confirmation by email."
	}
	return msg
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return "invalid booking details: " + strings.Join(fields, ", ")
}

// providerMessage returns a short reason suitable for callers. Rate limits
// are reported as such; other provider errors keep their text.
func providerMessage(err error) string {
	if retry.IsRateLimited(err) {
		return "calendar provider rate limit exceeded"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "calendar provider timed out"
	}
	return err.Error()
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
