package webdav

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/uploadsfs/internal/logging"
)

// BasicAuthMiddleware returns middleware that checks HTTP Basic Auth
// against a single user and a bcrypt password hash.
func BasicAuthMiddleware(user, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="uploadsfs"`)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			userOK := subtle.ConstantTimeCompare([]byte(username), []byte(user)) == 1
			passErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
			if !userOK || passErr != nil {
				logging.WithContext(r.Context()).Warn("webdav auth failed",
					zap.String("username", username))
				w.Header().Set("WWW-Authenticate", `Basic realm="uploadsfs"`)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
