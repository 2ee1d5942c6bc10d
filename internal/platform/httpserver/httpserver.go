// Package httpserver builds the API server with its timeout policy.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the twin management API. Write timeouts stay
// generous because aspect registration calls fan out to the connector and
// registry before responding; the header timeout still bounds slow clients.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
