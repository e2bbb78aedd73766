package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SchedulerAuth guards the internal dispatcher trigger with a shared secret.
// The scheduler (EventBridge or cron) sends it as a bearer token. A missing
// secret is a deployment fault, so the route answers 500 rather than letting
// the trigger run open.
func SchedulerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "scheduler secret not configured", http.StatusInternalServerError)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				http.Error(w, "invalid scheduler token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
