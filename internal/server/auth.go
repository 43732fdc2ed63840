package server

import (
	"net/http"
	"strings"
)

// DefaultCallerHeader carries the authenticated user id set by the fronting proxy.
const DefaultCallerHeader = "X-User-ID"

// Authenticator resolves the caller of a request. Session handling lives in front of
// this service; ok is false when the request is anonymous.
type Authenticator interface {
	CallerID(r *http.Request) (id string, ok bool)
}

// HeaderAuthenticator trusts a header injected by the proxy.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) CallerID(r *http.Request) (string, bool) {
	h := a.Header
	if h == "" {
		h = DefaultCallerHeader
	}
	id := strings.TrimSpace(r.Header.Get(h))
	return id, id != ""
}
