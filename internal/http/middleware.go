package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"skolar/auth-authority/internal/model"
	"skolar/auth-authority/internal/repository"
)

// requireAdmin gates the admin routes on a valid admin session presented as
// a bearer token. Any non-valid token gets the same generic answer.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "session_invalid")
			return
		}

		result, err := s.service.ValidateSession(r.Context(), token, model.KindAdmin)
		if err != nil {
			log.Printf("admin session check: %v", err)
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if !result.Valid {
			writeError(w, http.StatusUnauthorized, "session_invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
