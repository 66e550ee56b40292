// Package recovery turns handler panics into JSON 500 responses.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Yates-Labs/narraitor/internal/api/respond"
	"github.com/rs/zerolog"
)

// Middleware returns a handler wrapper that recovers panics, logs them with
// the stack to log and answers with the API failure envelope. The envelope
// is only written when the handler has not started its response.
func Middleware(log zerolog.Logger) func(http.Handler) http.Handler {
	log = log.With().Str("component", "recovery").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &trackingWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Str("panic", fmt.Sprint(rec)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bool("response_started", tw.started).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if !tw.started {
					respond.WriteInternalError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(tw, r)
		})
	}
}

// trackingWriter records whether the wrapped handler wrote anything.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.started = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.started = true
	return t.ResponseWriter.Write(b)
}
