package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword is called once at startup so the plain password is not kept
// around for the life of the process.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// RequireBasic checks HTTP basic credentials against username and a bcrypt
// hash. If no hash is configured, it allows all requests (local dev).
func RequireBasic(realm, username string, hash []byte) func(http.Handler) http.Handler {
	enabled := len(hash) > 0
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if ok && validUser(user, username) && bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", challenge)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized\n"))
		})
	}
}

func validUser(given, want string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}
