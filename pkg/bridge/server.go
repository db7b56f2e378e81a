// Package bridge implements the credential bridge between the Telegram Login
// Widget and an OAuth2 authorization-code consumer: it verifies signed widget
// payloads, issues one-time authorization codes, exchanges them for bearer
// tokens and answers userinfo lookups.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"github.com/telebridge/telebridge/pkg/authentik"
	"github.com/telebridge/telebridge/pkg/bridge/bridgeweb"
	"github.com/telebridge/telebridge/pkg/oauth2"
	"github.com/telebridge/telebridge/pkg/telegram"
)

// IdentityProvider is the downstream user-store contract, satisfied by
// *authentik.Client.
type IdentityProvider interface {
	FindUserByTelegramUsername(ctx context.Context, username string) (*authentik.User, error)
	CreateUserFromTelegram(ctx context.Context, login *telegram.LoginData) (*authentik.User, error)
	CheckUserAccess(ctx context.Context, pk int) (bool, error)
}

type Server struct {
	botToken       string
	botID          string
	clients        ClientsRegistry
	store          SessionStore
	idp            IdentityProvider
	accessTokenTTL time.Duration
	callbackPath   string
}

// ErrorHandlerMiddleware renders handler errors as OAuth2 JSON error bodies
// and logs them with request context.
func ErrorHandlerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err == nil {
			return nil
		}
		slog.Error("request failed", "error", err, "path", c.Path(), "remote_addr", c.RealIP())

		var oauthErr *oauth2.Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &oauthErr):
			return c.JSON(oauthErr.HttpStatus, oauthErr)
		case errors.As(err, &echoErr):
			return c.JSON(echoErr.Code, &oauth2.Error{
				Code:        "server_error",
				Description: fmt.Sprint(echoErr.Message),
			})
		default:
			return c.JSON(http.StatusInternalServerError, &oauth2.Error{
				Code: "server_error",
			})
		}
	}
}

func (s *Server) MountRoutes(group *echo.Group) {
	group.Use(ErrorHandlerMiddleware)
	group.GET("/", s.IndexEndpoint)
	group.GET("/healthz", s.HealthEndpoint)
	group.GET("/auth", s.AuthorizationEndpoint)
	group.POST(s.callbackPath, s.CallbackEndpoint)
	group.POST("/token", s.TokenEndpoint)
	group.GET("/userinfo", s.UserInfoEndpoint)
}

func (s *Server) IndexEndpoint(c echo.Context) error {
	return c.String(http.StatusOK, "Telegram OAuth2 bridge")
}

func (s *Server) HealthEndpoint(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// AuthorizationEndpoint starts the flow: it validates the OAuth client
// request, creates a pending session and serves the widget page.
func (s *Server) AuthorizationEndpoint(c echo.Context) error {
	var clientID, redirectURI, state, scope, responseType string
	binderr := echo.QueryParamsBinder(c).
		MustString("client_id", &clientID).
		MustString("redirect_uri", &redirectURI).
		MustString("state", &state).
		String("scope", &scope).
		String("response_type", &responseType).
		BindError()

	if binderr != nil {
		return oauth2.InvalidRequest(binderr.Error())
	}

	if responseType != "" && responseType != "code" {
		return oauth2.InvalidRequest(fmt.Sprintf("unsupported response_type: %s", responseType))
	}

	client, err := s.clients.GetClientMetadata(clientID)
	if err != nil {
		return oauth2.InvalidRequest("unknown client_id")
	}
	if !client.IsAllowedRedirectURI(redirectURI) {
		return oauth2.InvalidRequest("redirect_uri not allowed")
	}

	session := &Session{
		ID:          ksuid.New().String(),
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       state,
		Scope:       scope,
		CreatedAt:   time.Now(),
		Status:      StatusPending,
	}

	if err := s.store.SaveSession(session); err != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusInternalServerError,
			Code:        "server_error",
			Description: fmt.Errorf("unable to save session: %w", err).Error(),
		}
	}

	slog.Info("authorization session created", "session_id", session.ID, "client_id", clientID)

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return bridgeweb.RenderLogin(c.Response(), bridgeweb.LoginPageData{
		BotID:       s.botID,
		SessionID:   session.ID,
		CallbackURL: s.callbackPath,
	})
}

type callbackRequest struct {
	SessionID string          `json:"session_id"`
	AuthData  json.RawMessage `json:"auth_data"`
}

type callbackResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// CallbackEndpoint receives the signed widget payload from the browser,
// verifies it and answers with the redirect target carrying the one-time
// authorization code.
func (s *Server) CallbackEndpoint(c echo.Context) error {
	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return oauth2.InvalidRequest(fmt.Sprintf("unable to bind request: %s", err))
	}
	if req.SessionID == "" || len(req.AuthData) == 0 {
		return oauth2.InvalidRequest("missing session_id or auth_data")
	}

	session, err := s.store.GetSession(req.SessionID)
	if err != nil {
		return oauth2.InvalidRequest("unknown session")
	}

	if err := telegram.Verify(req.AuthData, s.botToken, time.Now()); err != nil {
		slog.Warn("widget payload rejected", "session_id", session.ID, "error", err)
		return &oauth2.Error{
			HttpStatus:  http.StatusForbidden,
			Code:        "invalid_signature",
			Description: "login data could not be verified",
		}
	}

	login, err := telegram.ParseLoginData(req.AuthData)
	if err != nil {
		return oauth2.InvalidRequest(fmt.Sprintf("invalid login data: %s", err))
	}

	if s.idp != nil {
		if errorCode := s.provisionUser(c.Request().Context(), login); errorCode != "" {
			// upstream details stay in the log; the client sees an opaque code
			return c.JSON(http.StatusOK, callbackResponse{
				RedirectURL: appendQuery(session.RedirectURI, url.Values{
					"error": {errorCode},
					"state": {session.State},
				}),
			})
		}
	}

	code := oauth2.GenerateToken(32)
	if err := s.store.AttachCode(session.ID, code, login.UserRecord()); err != nil {
		return oauth2.InvalidRequest(fmt.Sprintf("unable to issue code: %s", err))
	}

	slog.Info("authorization code issued",
		"session_id", session.ID, "subject", login.ID, "code_prefix", code[:8])

	return c.JSON(http.StatusOK, callbackResponse{
		RedirectURL: appendQuery(session.RedirectURI, url.Values{
			"code":  {code},
			"state": {session.State},
		}),
	})
}

// provisionUser finds or creates the user downstream and checks access.
// It returns an opaque error code, or "" when the login may proceed.
func (s *Server) provisionUser(ctx context.Context, login *telegram.LoginData) string {
	record := login.UserRecord()

	user, err := s.idp.FindUserByTelegramUsername(ctx, record.PreferredUsername)
	if err != nil {
		slog.Error("identity provider lookup failed", "error", err)
		return "upstream_failure"
	}

	if user == nil {
		user, err = s.idp.CreateUserFromTelegram(ctx, login)
		if err != nil {
			slog.Error("identity provider user creation failed", "error", err)
			return "upstream_failure"
		}
		slog.Info("provisioned downstream user", "username", user.Username)
	}

	allowed, err := s.idp.CheckUserAccess(ctx, user.PK)
	if err != nil {
		slog.Error("identity provider access check failed", "error", err)
		return "upstream_failure"
	}
	if !allowed {
		slog.Warn("downstream access denied", "username", user.Username)
		return "access_denied"
	}
	return ""
}

type tokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

// TokenEndpoint exchanges a one-time authorization code for a bearer token.
// Confidential clients only; refresh tokens are not issued.
func (s *Server) TokenEndpoint(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return oauth2.InvalidRequest(fmt.Sprintf("unable to bind request: %s", err))
	}

	if req.GrantType == "" {
		return oauth2.InvalidRequest("missing grant_type")
	}
	if req.GrantType != oauth2.GrantTypeAuthorizationCode {
		return oauth2.InvalidRequest(fmt.Sprintf("unsupported grant_type: %s", req.GrantType))
	}
	if req.Code == "" || req.ClientID == "" {
		return oauth2.InvalidRequest("missing code or client_id")
	}

	client, err := s.clients.GetClientMetadata(req.ClientID)
	if err != nil {
		return oauth2.InvalidClient("unknown client")
	}
	if !client.VerifySecret(req.ClientSecret) {
		return oauth2.InvalidClient("client authentication failed")
	}

	session, err := s.store.GetSessionByCode(req.Code)
	if err != nil {
		return oauth2.InvalidGrant("unknown, expired or already redeemed code")
	}
	if session.ClientID != client.ClientID {
		return oauth2.InvalidGrant("code was issued to a different client")
	}
	if session.RedirectURI != req.RedirectURI {
		return oauth2.InvalidGrant("redirect_uri mismatch")
	}

	token := oauth2.GenerateToken(32)
	redeemed, err := s.store.RedeemCode(req.Code, token, time.Now().Add(s.accessTokenTTL))
	if err != nil {
		// lost the race against a concurrent redemption
		return oauth2.InvalidGrant("unknown, expired or already redeemed code")
	}

	slog.Info("authorization code redeemed",
		"session_id", redeemed.ID, "client_id", client.ClientID, "code_prefix", req.Code[:min(8, len(req.Code))])

	return c.JSON(http.StatusOK, &oauth2.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTokenTTL.Seconds()),
		Scope:       redeemed.Scope,
	})
}

func appendQuery(uri string, params url.Values) string {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + params.Encode()
}
