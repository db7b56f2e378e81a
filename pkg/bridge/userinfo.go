package bridge

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/telebridge/telebridge/pkg/oauth2"
)

// UserInfoEndpoint resolves a bearer token back to the normalized user
// record captured at code issuance.
func (s *Server) UserInfoEndpoint(c echo.Context) error {
	token, ok := bearerToken(c.Request())
	if !ok {
		return oauth2.InvalidToken("missing bearer token")
	}

	session, err := s.store.GetSessionByToken(token)
	if err != nil {
		return oauth2.InvalidToken("unknown token")
	}
	if session.Status != StatusRedeemed || time.Now().After(session.TokenExpiresAt) {
		slog.Info("rejected expired access token", "session_id", session.ID)
		return oauth2.InvalidToken("token expired")
	}

	return c.JSON(http.StatusOK, session.User)
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get(echo.HeaderAuthorization)
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
