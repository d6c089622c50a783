package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/clientip"
)

const headerRequestID = "X-Request-ID"

// apiFunc is a handler that reports failure by returning an error instead
// of writing it. Only apiFuncs can be wrapped by audited.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

type httpError struct {
	code    int
	message string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%d: %s", e.code, e.message)
}

func newHTTPError(code int, message string) *httpError {
	return &httpError{code: code, message: message}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("handler responded with status %d", e.code)
}

// audited wraps the whole handler call. A returned error or a panic is
// recorded as FAILED; the handler's own outcome always reaches the client.
// resourceKey names the path variable holding the target resource id.
func (s *Server) audited(action, resourceKey string, fn apiFunc) http.Handler {
	if action == "" {
		panic(audit.ErrEmptyAction)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := s.auditCall(r, action)
		if resourceKey != "" {
			if id, ok := mux.Vars(r)[resourceKey]; ok {
				call.ResourceID = &id
			}
		}

		sw := newStatusWriter(w)
		err := s.recorder.Guard(r.Context(), call, func(ctx context.Context) error {
			return fn(sw, r.WithContext(ctx))
		})
		if err == nil {
			return
		}
		if sw.wroteHeader {
			// the handler already answered; its response stands
			s.logger.Error("Handler failed after responding",
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.GetStatusCode()),
				zap.Error(err))
			return
		}
		s.writeError(w, r, err)
	})
}

// auditDependency attaches an audit scope before the handler runs and
// settles it after, on every exit path. A status of 400 or above, or a
// panic, is recorded as FAILED.
func (s *Server) auditDependency(action string) mux.MiddlewareFunc {
	if action == "" {
		panic(audit.ErrEmptyAction)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := s.recorder.Begin(r.Context(), s.auditCall(r, action))
			sw := newStatusWriter(w)

			var outcome error
			defer scope.Settle(&outcome)

			next.ServeHTTP(sw, r.WithContext(audit.WithScope(r.Context(), scope)))
			if sw.GetStatusCode() >= http.StatusBadRequest {
				outcome = &statusError{code: sw.GetStatusCode()}
			}
		})
	}
}

func (s *Server) auditCall(r *http.Request, action string) audit.Call {
	call := audit.Call{
		Action: action,
		IP:     audit.StringPtr(clientip.FromRequest(r)),
		Metadata: map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	}
	if user, ok := userFromContext(r.Context()); ok {
		call.UserID = audit.Int64Ptr(user.ID)
	}
	if rid := r.Header.Get(headerRequestID); rid != "" {
		call.RequestID = &rid
	}
	return call
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	if errors.As(err, &he) {
		respondError(w, he.code, he.message)
		return
	}
	s.logger.Error("Handler failed", zap.String("path", r.URL.Path), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "Internal server error")
}
