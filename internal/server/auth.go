package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
)

type userKey struct{}

func withUser(ctx context.Context, user *repository.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func userFromContext(ctx context.Context) (*repository.User, bool) {
	user, ok := ctx.Value(userKey{}).(*repository.User)
	return user, ok
}

// identifyMiddleware puts the basic-auth caller into the request context.
// It never rejects: missing or wrong credentials continue anonymously and
// each handler decides what an anonymous caller may do.
func (s *Server) identifyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.lookupUser(r.Context(), username)
		if err != nil {
			if !errors.Is(err, repository.ErrObjectNotFound) {
				s.logger.Warn("Failed to look up user", zap.String("username", username), zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		if !user.CheckPassword(password) {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) lookupUser(ctx context.Context, username string) (*repository.User, error) {
	if user, ok := s.userCache.Get(username); ok {
		return user, nil
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(user)
	return user, nil
}
