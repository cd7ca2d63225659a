// Package server builds the HTTP server the dispatcher API runs on.
package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
)

// New wraps the router in an http.Server. The caller owns ListenAndServe
// and Shutdown; main wires both into the signal-driven lifecycle.
func New(addr string, router *ginext.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
