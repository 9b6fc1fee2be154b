package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/websocket"
)

type ctxKey int

const userIDKey ctxKey = iota

// authenticate resolves the bearer token to a user id. Progress stream
// upgrades may pass the token as an access_token query parameter instead,
// since browsers cannot set headers on websocket handshakes.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		userID, ok := s.lookupToken(token)
		if !ok {
			s.writeError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if streamUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func streamUpgrade(r *http.Request) bool {
	return r.Method == http.MethodGet && path.Base(r.URL.Path) == "progress" && websocket.IsWebSocketUpgrade(r)
}

func (s *Server) lookupToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for known, userID := range s.cfg.AuthTokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return userID, true
		}
	}
	return "", false
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
