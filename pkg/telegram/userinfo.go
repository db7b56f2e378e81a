package telegram

import (
	"fmt"
	"strings"
)

// SubjectPrefix namespaces Telegram numeric ids to this provider, keeping
// subjects stable and collision-free in the consuming identity provider.
const SubjectPrefix = "telegram:"

// UserRecord is the normalized identity handed to the downstream identity
// provider. Telegram furnishes no email addresses, so the email fields are
// always empty and unverified.
type UserRecord struct {
	Subject           string `json:"sub"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture,omitempty"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
}

// UserRecord derives the normalized record from the widget payload.
func (d *LoginData) UserRecord() *UserRecord {
	username := d.Username
	if username == "" {
		username = fmt.Sprintf("telegram_%d", d.ID)
	}

	parts := make([]string, 0, 2)
	for _, part := range []string{d.FirstName, d.LastName} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return &UserRecord{
		Subject:           fmt.Sprintf("%s%d", SubjectPrefix, d.ID),
		Name:              strings.Join(parts, " "),
		PreferredUsername: username,
		Picture:           d.PhotoURL,
	}
}
