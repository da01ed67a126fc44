package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/slotkeeper/internal/google"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/retry"
)

// Provider-side caps applied to every free/busy request.
const (
	CalendarExpansionMax     = 50
	GroupExpansionMax        = 100
	DefaultRequestsPerMinute = 600
)

// Options configures a Client.
type Options struct {
	// RequestsPerMinute caps outgoing calls (default 600). It is ignored
	// when Limiter is set.
	RequestsPerMinute int

	// Limiter paces outgoing calls. Clients built with the same Limiter
	// share one request budget.
	Limiter *rate.Limiter

	// Metrics records provider call metrics. May be nil.
	Metrics *instrumentation.Metrics

	// HTTPClient and Endpoint override the authenticated transport, for
	// tests and alternate deployments.
	HTTPClient *http.Client
	Endpoint   string
}

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
}

// NewClient creates a Calendar client authenticated with a tenant's
// refresh token.
func NewClient(ctx context.Context, creds google.Credentials, opts Options) (*Client, error) {
	if !creds.Complete() && opts.HTTPClient == nil {
		return nil, fmt.Errorf("failed to create Calendar client: %w", google.ErrNoCredentials)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = google.HTTPClient(ctx, creds)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := calendar.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(opts.RequestsPerMinute)
	}

	return &Client{
		svc:     svc,
		limiter: limiter,
		metrics: opts.Metrics,
	}, nil
}

// NewLimiter paces calls to rpm requests per minute, allowing bursts of one
// second's worth. A non-positive rpm means DefaultRequestsPerMinute.
func NewLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	burst := rpm / 60
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

// ProviderFactory builds a Provider for a tenant's credentials. Every
// Provider it builds shares one rate limiter and the metrics in opts, so
// the request budget applies across tenants.
func ProviderFactory(opts Options) func(ctx context.Context, creds google.Credentials) (Provider, error) {
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(opts.RequestsPerMinute)
	}
	return func(ctx context.Context, creds google.Credentials) (Provider, error) {
		return NewClient(ctx, creds, opts)
	}
}

// call waits for the limiter and records metrics and a span around fn.
func (c *Client) call(ctx context.Context, operation, calendarID string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, operation, calendarID)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		instrumentation.SetSpanError(span, err)
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	err := fn(ctx)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordCalendarOperation(ctx, operation, status, time.Since(start))
	return err
}

// QueryFreeBusy queries free/busy information for the requested calendars.
// Calendars are returned sorted by id.
func (c *Client) QueryFreeBusy(ctx context.Context, q FreeBusyQuery) ([]FreeBusyInfo, error) {
	items := make([]*calendar.FreeBusyRequestItem, len(q.CalendarIDs))
	for i, id := range q.CalendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	req := &calendar.FreeBusyRequest{
		TimeMin:              q.TimeMin.Format(time.RFC3339),
		TimeMax:              q.TimeMax.Format(time.RFC3339),
		TimeZone:             q.TimeZone,
		Items:                items,
		CalendarExpansionMax: CalendarExpansionMax,
		GroupExpansionMax:    GroupExpansionMax,
	}

	var result *calendar.FreeBusyResponse
	err := c.call(ctx, instrumentation.OperationFreeBusy, firstOrEmpty(q.CalendarIDs), func(ctx context.Context) error {
		var err error
		result, err = c.svc.Freebusy.Query(req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", classify(err))
	}

	ids := make([]string, 0, len(result.Calendars))
	for id := range result.Calendars {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	infos := make([]FreeBusyInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, toFreeBusyInfo(id, result.Calendars[id]))
	}
	return infos, nil
}

// InsertEvent creates a timed event.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, input EventInput) (*EventSummary, error) {
	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: tz,
		},
	}
	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	sendUpdates := input.SendUpdates
	if sendUpdates == "" {
		sendUpdates = SendUpdatesNone
	}

	var created *calendar.Event
	err := c.call(ctx, instrumentation.OperationInsertEvent, calendarID, func(ctx context.Context) error {
		var err error
		created, err = c.svc.Events.Insert(calendarID, event).SendUpdates(sendUpdates).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", classify(err))
	}

	summary := toEventSummary(created)
	return &summary, nil
}

// DeleteEvent deletes an event and notifies its attendees.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.call(ctx, instrumentation.OperationDeleteEvent, calendarID, func(ctx context.Context) error {
		return c.svc.Events.Delete(calendarID, eventID).SendUpdates(SendUpdatesAll).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", classify(err))
	}
	return nil
}

// classify wraps Google API errors so retry.IsRateLimited can inspect the
// status code and reason.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	return &retry.StatusError{Code: gerr.Code, Reason: reason, Err: err}
}

func firstOrEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
