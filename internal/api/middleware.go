package api

import "net/http"

const (
	headerUserID = "X-User-Id"
	// queryUserID is accepted on /ws because browsers cannot set headers on
	// a WebSocket handshake.
	queryUserID = "userId"
)

// authMiddleware reads the user from the X-User-Id header, or the userId
// query parameter on WebSocket upgrades, and stores it in the request
// context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" && r.URL.Path == "/ws" {
			userID = r.URL.Query().Get(queryUserID)
		}

		if userID == "" {
			http.Error(w, "missing X-User-Id header", http.StatusUnauthorized)

			return
		}

		ctx := withUser(r.Context(), userID, s.logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
