package feed

import (
	"fmt"
	"net/http"
)

// AuthScheme selects how the credential is attached to feed requests.
type AuthScheme int

const (
	// AuthNone sends no credential; public sessions accept this.
	AuthNone AuthScheme = iota
	// AuthBearer attaches a static bearer token in the Authorization header.
	AuthBearer
	// AuthSession attaches an interactive-login session credential as a
	// cookie.
	AuthSession
)

// String returns the string representation of AuthScheme
func (s AuthScheme) String() string {
	switch s {
	case AuthNone:
		return "none"
	case AuthBearer:
		return "bearer"
	case AuthSession:
		return "session"
	default:
		return "unknown"
	}
}

// sessionCookieName is the cookie the feed expects interactive-login
// credentials under.
const sessionCookieName = "account-session"

// Auth carries the opaque credential for a run. How the credential is
// acquired (environment variable, browser login) is the caller's concern;
// the client only attaches it. Credentials are never validated locally:
// a bad credential surfaces as a rejected negotiation.
type Auth struct {
	Scheme     AuthScheme
	Credential string
}

// NoAuth returns an Auth that attaches no credential
func NoAuth() Auth {
	return Auth{Scheme: AuthNone}
}

// BearerAuth returns an Auth attaching the given bearer token
func BearerAuth(token string) Auth {
	return Auth{Scheme: AuthBearer, Credential: token}
}

// SessionAuth returns an Auth attaching the given session credential
func SessionAuth(credential string) Auth {
	return Auth{Scheme: AuthSession, Credential: credential}
}

// decorate adds the credential to an outbound request's headers.
func (a Auth) decorate(header http.Header) {
	switch a.Scheme {
	case AuthBearer:
		if a.Credential != "" {
			header.Set("Authorization", "Bearer "+a.Credential)
		}
	case AuthSession:
		if a.Credential != "" {
			header.Add("Cookie", fmt.Sprintf("%s=%s", sessionCookieName, a.Credential))
		}
	}
}
