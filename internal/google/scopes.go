package google

// CalendarScopes are the OAuth scopes a tenant's refresh token must carry.
// Free/busy queries and event insert/delete both need full calendar access.
var CalendarScopes = []string{
	"https://www.googleapis.com/auth/calendar",
}
