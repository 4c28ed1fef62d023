package api

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/strefethen/amplipi-keypad-go/internal/apperrors"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// maxRequestIDLen bounds client-supplied ids before they reach logs and the
// audit table.
const maxRequestIDLen = 64

// RequestIDMiddleware tags every request with an id, reusing a well-formed
// x-request-id from the client and minting a UUID otherwise.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("x-request-id")
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("x-request-id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// GetRequestID returns the id RequestIDMiddleware attached, or "".
func GetRequestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	requestID, _ := r.Context().Value(requestIDKey).(string)
	return requestID
}

// Recoverer turns a handler panic into a 500 and logs the stack with the
// request id. logger may be nil.
func Recoverer(logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				logger.Printf("[%s] panic in %s %s: %v\n%s", GetRequestID(r), r.Method, r.URL.Path, recovered, debug.Stack())
				WriteError(w, r, apperrors.NewInternalError("Internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
