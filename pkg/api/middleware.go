package api

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// requireBasicAuth checks request credentials against the configured
// users. Password hashes are bcrypt.
func (s *server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if ok && s.checkCredentials(username, password) {
			next.ServeHTTP(w, r)

			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="trackoor"`)
		writeJSON(w, http.StatusUnauthorized, errorResponse{"unauthorized"})
	})
}

func (s *server) checkCredentials(username, password string) bool {
	for _, user := range s.cfg.Auth.Basic.Users {
		if user.Username != username {
			continue
		}

		return bcrypt.CompareHashAndPassword(
			[]byte(user.PasswordHash), []byte(password),
		) == nil
	}

	return false
}
