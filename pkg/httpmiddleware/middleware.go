// Package httpmiddleware provides the server's HTTP middleware chain:
// panic recovery, CORS, per-client rate limiting, request IDs, and request
// logging.
package httpmiddleware

import "net/http"

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware listed is the
// outermost: it sees the request first and the response last.
func Wrap(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
