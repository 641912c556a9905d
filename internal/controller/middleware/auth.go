package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
	"github.com/Freeeeeet/mentorship_api/internal/controller/respond"
	"github.com/Freeeeeet/mentorship_api/internal/metrics"
	"github.com/Freeeeeet/mentorship_api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier resolves a bearer token to a user id, see service.TokenService.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type userIDKey struct{}

// WithUserID stores the resolved caller id in ctx.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the caller id put in ctx by Auth.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// Auth is the gate in front of every protected route. A request without a
// bearer token is refused as unauthenticated; a token that fails verification
// is refused as an invalid credential. Roles and ownership are not checked here.
func Auth(tokens TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				metrics.AuthFailures.WithLabelValues("missing").Inc()
				respond.Error(w, r, logger, apperr.Unauthenticated("No token provided"))
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				reason := failureReason(err)
				metrics.AuthFailures.WithLabelValues(reason).Inc()
				logger.Debug("Token rejected",
					zap.String("reason", reason),
					zap.String("path", r.URL.Path),
				)
				respond.Error(w, r, logger, apperr.New(apperr.KindInvalidCredential, "Invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "expired"
	case errors.Is(err, service.ErrTokenInvalidSignature):
		return "signature"
	default:
		return "malformed"
	}
}
