package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/models"
)

type contextKey string

const StaffKey contextKey = "staff"

// StaffAuth middleware validates the bearer token on staff API routes
func StaffAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				log.Warn().Str("path", r.URL.Path).Msg("Missing bearer token")
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			claims := &models.StaffClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
				func(t *jwt.Token) (interface{}, error) {
					return []byte(secret), nil
				},
				jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), StaffKey, &models.StaffContext{
				UserID: claims.UserID,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetStaff extracts the authenticated staff member from context
func GetStaff(ctx context.Context) (*models.StaffContext, bool) {
	staff, ok := ctx.Value(StaffKey).(*models.StaffContext)
	return staff, ok
}
