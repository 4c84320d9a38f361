package middleware

import (
	"net/http"
	"strings"

	"kynto-backend/pkg/auth"
	"kynto-backend/pkg/common"

	"go.uber.org/zap"
)

// Authenticate requires a valid bearer token and attaches the resolved
// user to the request context. Used by owner-scoped routes.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				common.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate attaches the user to the context when a valid token
// is present and lets the request through anonymously otherwise. The
// generate endpoint serves guests, so a missing or stale token is not an
// error here; the guest gate decides downstream.
func OptionalAuthenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token != "" {
				claims, err := validator.ValidateToken(token)
				if err == nil {
					ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
						UserID: claims.UserID,
						Email:  claims.Email,
					})
					r = r.WithContext(ctx)
				} else {
					logger.Debug("Ignoring invalid token on guest-capable route",
						zap.Error(err),
						zap.String("path", r.URL.Path),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies a per-client-IP limit before a request reaches the
// provider-backed endpoint
func RateLimit(limiter auth.RateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, err := limiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
				common.RespondError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
				return
			}
			if !allowed {
				common.RespondError(w, http.StatusTooManyRequests, "Kynto is highly active right now. Please try again in a moment.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return authHeader
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
