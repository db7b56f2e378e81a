// Package oauth2 holds the wire-level primitives of the authorization code
// grant as the bridge emulates it: protocol errors, the token response and
// opaque credential generation.
package oauth2

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
)

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Error is an OAuth2 protocol error. It is returned from echo handlers and
// rendered as a JSON body by the error middleware.
type Error struct {
	HttpStatus  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func InvalidRequest(description string) *Error {
	return &Error{HttpStatus: http.StatusBadRequest, Code: "invalid_request", Description: description}
}

func InvalidGrant(description string) *Error {
	return &Error{HttpStatus: http.StatusBadRequest, Code: "invalid_grant", Description: description}
}

func InvalidClient(description string) *Error {
	return &Error{HttpStatus: http.StatusUnauthorized, Code: "invalid_client", Description: description}
}

func InvalidToken(description string) *Error {
	return &Error{HttpStatus: http.StatusUnauthorized, Code: "invalid_token", Description: description}
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// GenerateToken generates a cryptographically secure random token of the
// given size in bytes, encoded as URL-safe base64 without padding.
func GenerateToken(size int) string {
	tokenBytes := make([]byte, size)
	_, err := rand.Read(tokenBytes)
	if err != nil {
		log.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes)
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
