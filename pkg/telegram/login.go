// Package telegram verifies the signed payload produced by the Telegram
// Login Widget and normalizes it into a user record for the downstream
// identity provider.
//
// The widget signs every field except "hash": the fields are rendered as
// "name=value" lines, sorted by name, joined with newlines, and signed with
// HMAC-SHA256 keyed by the SHA-256 digest of the bot token.
package telegram

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FreshnessWindow is the maximum accepted age of a signed login payload.
const FreshnessWindow = 3600 * time.Second

var (
	ErrMissingField = errors.New("missing required field")
	ErrBadSignature = errors.New("signature mismatch")
	ErrExpired      = errors.New("login data expired")
)

// LoginData is the identity assertion delivered by the login widget.
type LoginData struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

func ParseLoginData(data []byte) (*LoginData, error) {
	var login LoginData
	if err := json.Unmarshal(data, &login); err != nil {
		return nil, fmt.Errorf("unmarshal login data: %w", err)
	}
	if login.ID == 0 {
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	}
	return &login, nil
}

// Verify checks the authenticity and freshness of a raw widget payload.
// It is a pure predicate over the payload: any malformed input yields an
// error, never a panic. The payload is inspected as raw JSON so numeric
// fields re-render exactly as the widget signed them.
func Verify(data []byte, botToken string, now time.Time) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("decode login data: %w", err)
	}

	hash, ok := fields["hash"].(string)
	if !ok || hash == "" {
		return fmt.Errorf("%w: hash", ErrMissingField)
	}
	delete(fields, "hash")

	if _, ok := fields["id"]; !ok {
		return fmt.Errorf("%w: id", ErrMissingField)
	}
	authDateRaw, ok := fields["auth_date"]
	if !ok {
		return fmt.Errorf("%w: auth_date", ErrMissingField)
	}
	authDate, err := strconv.ParseInt(fieldValue(authDateRaw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid auth_date: %w", err)
	}

	expected := signCheckString(checkString(fields), botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return ErrBadSignature
	}

	// freshness window is inclusive: exactly 3600s old still passes
	if now.Unix()-authDate > int64(FreshnessWindow/time.Second) {
		return ErrExpired
	}

	return nil
}

// checkString renders the signed fields as sorted "name=value" lines.
func checkString(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+"="+fieldValue(fields[name]))
	}
	return strings.Join(lines, "\n")
}

func fieldValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func signCheckString(checkString, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}
