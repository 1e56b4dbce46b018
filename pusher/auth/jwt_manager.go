package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// JwtManager issues and verifies the tokens that push workers use to report
// status back to the service. Each token is scoped to a single push.
type JwtManager struct {
	auth *jwtauth.JWTAuth
}

func NewJwtManager(secret []byte) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil)}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return jwtauth.Authenticator(m.auth)
}

const pushIdKey = "push_id"

func (m *JwtManager) CreatePushJwt(pushId uuid.UUID, exp time.Duration) (string, error) {
	claims := map[string]interface{}{
		pushIdKey: pushId.String(),
		"exp":     time.Now().Add(exp),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating push jwt", "push_id", pushId, "error", err)
		return "", fmt.Errorf("error generating push token: %w", err)
	}
	return token, nil
}

func PushIdFromContext(r *http.Request) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, fmt.Errorf("error retrieving auth claims: %w", err)
	}

	valueUncasted, ok := claims[pushIdKey]
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid token: unable to locate key %v in claims", pushIdKey)
	}

	value, ok := valueUncasted.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid token: value for key %v has invalid type", pushIdKey)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid '%v' provided: %w", value, err)
	}
	return id, nil
}
