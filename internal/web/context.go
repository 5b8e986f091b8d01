package web

import (
	"context"
	"net/http"
)

// opContext bounds a pipeline operation started by r. The operation stops
// when the client disconnects or the configured timeout passes.
func (s *Server) opContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.opTimeout)
}
