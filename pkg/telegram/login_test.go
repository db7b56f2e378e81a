package telegram

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testBotToken = "110201543:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

// signedPayload builds a widget payload signed with the given bot token.
func signedPayload(t *testing.T, fields map[string]any, botToken string) []byte {
	t.Helper()

	raw, err := json.Marshal(fields)
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	decoded := map[string]any{}
	require.NoError(t, dec.Decode(&decoded))

	fields["hash"] = signCheckString(checkString(decoded), botToken)
	raw, err = json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func TestVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)

	payload := signedPayload(t, map[string]any{
		"id":         int64(42),
		"first_name": "Alice",
		"last_name":  "Liddell",
		"username":   "alice",
		"photo_url":  "https://t.me/i/userpic/320/alice.jpg",
		"auth_date":  now.Unix() - 60,
	}, testBotToken)

	require.NoError(t, Verify(payload, testBotToken, now))
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := signedPayload(t, map[string]any{
		"id":        int64(42),
		"auth_date": now.Unix(),
	}, testBotToken)

	err := Verify(payload, "some-other-token", now)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsTamperedFields(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tampered := []map[string]any{
		{"id": int64(43), "username": "alice", "auth_date": now.Unix()},
		{"id": int64(42), "username": "mallory", "auth_date": now.Unix()},
		{"id": int64(42), "username": "alice", "auth_date": now.Unix() - 1},
	}

	payload := signedPayload(t, map[string]any{
		"id":        int64(42),
		"username":  "alice",
		"auth_date": now.Unix(),
	}, testBotToken)

	var original map[string]any
	require.NoError(t, json.Unmarshal(payload, &original))

	for _, fields := range tampered {
		fields["hash"] = original["hash"]
		raw, err := json.Marshal(fields)
		require.NoError(t, err)
		require.ErrorIs(t, Verify(raw, testBotToken, now), ErrBadSignature)
	}
}

func TestVerifyFreshnessWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)

	// exactly at the boundary still passes
	payload := signedPayload(t, map[string]any{
		"id":        int64(42),
		"auth_date": now.Unix() - 3600,
	}, testBotToken)
	require.NoError(t, Verify(payload, testBotToken, now))

	// one second past the boundary is stale, even with a valid hash
	payload = signedPayload(t, map[string]any{
		"id":        int64(42),
		"auth_date": now.Unix() - 3601,
	}, testBotToken)
	require.ErrorIs(t, Verify(payload, testBotToken, now), ErrExpired)
}

func TestVerifyMissingFields(t *testing.T) {
	now := time.Unix(1700000000, 0)

	for _, missing := range []string{"id", "auth_date", "hash"} {
		fields := map[string]any{
			"id":        int64(42),
			"auth_date": now.Unix(),
		}
		payload := signedPayload(t, fields, testBotToken)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(payload, &decoded))
		delete(decoded, missing)
		raw, err := json.Marshal(decoded)
		require.NoError(t, err)

		require.ErrorIs(t, Verify(raw, testBotToken, now), ErrMissingField, "missing %s", missing)
	}
}

func TestVerifyMalformedPayload(t *testing.T) {
	require.Error(t, Verify([]byte("not json"), testBotToken, time.Now()))
	require.Error(t, Verify([]byte(`{"id":42,"auth_date":"soon","hash":"00"}`), testBotToken, time.Now()))
}

func TestUserRecord(t *testing.T) {
	tests := []struct {
		name  string
		login LoginData
		want  UserRecord
	}{
		{
			name: "full profile",
			login: LoginData{
				ID:        42,
				FirstName: "Alice",
				LastName:  "Liddell",
				Username:  "alice",
				PhotoURL:  "https://t.me/i/userpic/320/alice.jpg",
			},
			want: UserRecord{
				Subject:           "telegram:42",
				Name:              "Alice Liddell",
				PreferredUsername: "alice",
				Picture:           "https://t.me/i/userpic/320/alice.jpg",
			},
		},
		{
			name:  "no username falls back to synthesized one",
			login: LoginData{ID: 7, FirstName: "Bob"},
			want: UserRecord{
				Subject:           "telegram:7",
				Name:              "Bob",
				PreferredUsername: "telegram_7",
			},
		},
		{
			name:  "empty name parts dropped",
			login: LoginData{ID: 9, LastName: "Crane", Username: "ichabod"},
			want: UserRecord{
				Subject:           "telegram:9",
				Name:              "Crane",
				PreferredUsername: "ichabod",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, *tt.login.UserRecord())
		})
	}
}

func TestParseLoginData(t *testing.T) {
	login, err := ParseLoginData([]byte(`{"id":42,"username":"alice","auth_date":1700000000,"hash":"aa"}`))
	require.NoError(t, err)
	require.Equal(t, int64(42), login.ID)
	require.Equal(t, "alice", login.Username)

	_, err = ParseLoginData([]byte(`{"username":"alice"}`))
	require.ErrorIs(t, err, ErrMissingField)
}
