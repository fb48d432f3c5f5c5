package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// JwtManager issues and verifies the service tokens the gateway presents on
// every request. There is no per-user login: moderators and submitters act
// through the chat platform, and the gateway is the only direct caller.
type JwtManager struct {
	auth *jwtauth.JWTAuth
}

func NewJwtManager(secret []byte) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil)}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verifier(m.auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		}))
	}
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Authenticator(m.auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		}))
	}
}

const gatewayKey = "gateway"

func (m *JwtManager) CreateGatewayJwt(gatewayId string, exp time.Duration) (string, error) {
	claims := map[string]interface{}{
		gatewayKey: gatewayId,
		"exp":      time.Now().Add(exp),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating gateway jwt", "error", err)
		return "", fmt.Errorf("error generating gateway token: %w", err)
	}
	return token, nil
}
