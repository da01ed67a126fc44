// Package calendar talks to the external calendar provider.
//
// Provider is the narrow surface the availability engine needs: free/busy
// queries plus event insert and delete. Client implements it on top of the
// Google Calendar v3 API with a per-client request limiter and translates
// Google API errors into retry.StatusError values so rate limits can be
// classified without importing googleapi elsewhere.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, creds, calendar.Options{})
//	if err != nil {
//	    return err
//	}
//	infos, err := client.QueryFreeBusy(ctx, calendar.FreeBusyQuery{
//	    TimeMin:     from,
//	    TimeMax:     to,
//	    TimeZone:    "Africa/Casablanca",
//	    CalendarIDs: []string{"primary"},
//	})
package calendar
