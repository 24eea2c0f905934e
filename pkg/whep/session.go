package whep

const anyMatchToken = "*"

// Session is the server side resource created by a successful offer.
// Both fields are always set.
type Session struct {
	URL        string
	MatchToken string
}

func newSession(url string, etag string) *Session {
	matchToken := etag
	if matchToken == "" {
		matchToken = anyMatchToken
	}
	return &Session{
		URL:        url,
		MatchToken: matchToken,
	}
}
