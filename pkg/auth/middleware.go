package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware attaches validated claims to the request context.
type Middleware struct {
	jwks   JWKSClientInterface
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware. A nil jwks client disables
// token handling and every request is treated as anonymous.
func NewMiddleware(jwks JWKSClientInterface, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		jwks:   jwks,
		logger: logger.Named("auth"),
	}
}

// OptionalAuth validates a bearer token when one is present.
// Requests without an Authorization header pass through anonymously.
// A header with an invalid token is rejected with 401 so clients notice
// expired credentials instead of silently dropping to the lower rate tier.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || m.jwks == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			m.unauthorized(w, "Authorization header must use the Bearer scheme")
			return
		}

		claims, err := m.jwks.ValidateToken(token)
		if err != nil {
			m.logger.Debug("rejected bearer token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ekaya-datadict"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
