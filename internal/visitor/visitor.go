// Package visitor defines the request-scoped view of a visitor that the
// decision pipeline operates on.
package visitor

import "net/http"

// Visit carries everything the pipeline needs to know about one request.
// IP is the opaque visitor identity (an IPv4 or IPv6 literal, kept as-is).
type Visit struct {
	IP        string
	Hostname  string // reverse-DNS name, resolved once per request
	SessionID string
	UserAgent string
	Referer   string

	// JS cookie as received from the client. HasCookie distinguishes a
	// missing cookie from an empty value.
	CookieValue string
	HasCookie   bool

	Header http.Header
}

// Directive is an instruction for the HTTP layer to apply when building the
// response, instead of mutating ambient state inside the pipeline.
type Directive struct {
	ClearCookie string `json:"clear_cookie,omitempty"`
}
