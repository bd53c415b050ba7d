package middleware

import (
	"net/http"
	"strings"

	"github.com/spectraml/spectrajobs/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// WorkerAuth authenticates the worker-facing end-report route. Workers send
// a shared bearer token that is checked against a bcrypt hash from config,
// so the plaintext token never lives in the server environment.
type WorkerAuth struct {
	tokenHash []byte
}

// NewWorkerAuth creates a WorkerAuth middleware from a bcrypt token hash.
func NewWorkerAuth(tokenHash string) *WorkerAuth {
	return &WorkerAuth{tokenHash: []byte(tokenHash)}
}

// Authenticate validates the Bearer token on worker callbacks.
func (a *WorkerAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)) != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid worker token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
