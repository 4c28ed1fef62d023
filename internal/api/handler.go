package api

import (
	"net/http"
)

// Handler is an http.Handler that reports failures by returning them. The
// error is written with WriteError, so handlers return AppErrors for
// anything a client should see.
type Handler func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP implements http.Handler.
func (handler Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := handler(w, r); err != nil {
		WriteError(w, r, err)
	}
}
