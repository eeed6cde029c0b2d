package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"momo-storefront/internal/auth"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	AdminID   int64
	Username  string
	SessionID string
	Role      auth.Role
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// Authenticate validates an admin token and its session. It is shared by the bearer
// middleware and the websocket handshake, which carries the token as a query parameter.
func Authenticate(token, jwtSecret string, sessions *auth.Sessions) (*AuthContext, error) {
	claims, err := auth.VerifyAccessToken(token, jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.Role != auth.RoleAdmin {
		return nil, auth.ErrSessionEnded
	}
	if sessions != nil && !sessions.Active(claims.SessionID) {
		return nil, auth.ErrSessionEnded
	}
	adminID, err := strconv.ParseInt(claims.AdminID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &AuthContext{
		AdminID:   adminID,
		Username:  claims.Username,
		SessionID: claims.SessionID,
		Role:      claims.Role,
	}, nil
}

func AdminAuth(jwtSecret string, sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			authCtx, err := Authenticate(token, jwtSecret, sessions)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Admin session is not valid", err.Error())
				return
			}

			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
