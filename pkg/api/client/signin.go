package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultIdentityToolkitURL is Firebase's password sign-in endpoint.
const DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// Session is an ID token obtained from the identity provider.
type Session struct {
	Email        string    `json:"email"`
	UID          string    `json:"uid"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the ID token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return s.IDToken == "" || !now.Before(s.ExpiresAt)
}

// SignIn exchanges email and password for an ID token at the identity
// provider. The API server never sees the password.
func SignIn(ctx context.Context, httpClient *http.Client, endpoint, apiKey, email, password string) (Session, error) {
	if strings.TrimSpace(apiKey) == "" {
		return Session{}, fmt.Errorf("firebase web api key is required")
	}
	if endpoint == "" {
		endpoint = DefaultIdentityToolkitURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	payload, err := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return Session{}, fmt.Errorf("encode sign-in request: %w", err)
	}
	target := endpoint + "?key=" + url.QueryEscape(apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return Session{}, fmt.Errorf("create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("perform sign-in request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
		Error        struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Session{}, fmt.Errorf("decode sign-in response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := body.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return Session{}, fmt.Errorf("sign-in rejected: %s", msg)
	}
	seconds, err := strconv.Atoi(body.ExpiresIn)
	if err != nil {
		seconds = 3600
	}
	return Session{
		Email:        body.Email,
		UID:          body.LocalID,
		IDToken:      body.IDToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(seconds) * time.Second),
	}, nil
}
