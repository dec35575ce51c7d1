// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package steamtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Login configures the fake login flow.
type Login struct {
	Username  string
	Password  string
	SteamID   string
	GuardCode string
	Timestamp string

	// RemoteInteraction makes the status poll report remote interaction.
	RemoteInteraction bool
	// FinalizeError makes finalizelogin answer with an error field.
	FinalizeError bool
	// MissingCookieHosts lists transfer hosts that answer without the
	// secure cookie.
	MissingCookieHosts []string
	// TransferHosts are the hosts named in transfer_info. Defaults to
	// community, store and help.
	TransferHosts []string
	// TransferDelay delays every transfer response.
	TransferDelay time.Duration

	key          *rsa.PrivateKey
	refreshToken string
	accessTokens sync.Map
	transfers    atomic.Int32
}

// PrivateKey returns the key whose public half the fake hands out.
func (l *Login) PrivateKey() *rsa.PrivateKey {
	return l.key
}

// RefreshToken returns the refresh token the fake issues.
func (l *Login) RefreshToken() string {
	return l.refreshToken
}

// AccessToken returns the access token the fake issued for host.
func (l *Login) AccessToken(host string) string {
	v, ok := l.accessTokens.Load(host)
	if !ok {
		return ""
	}
	token, _ := v.(string) //nolint:errcheck // type assertion, not an error
	return token
}

// Transfers returns how many transfer requests arrived.
func (l *Login) Transfers() int {
	return int(l.transfers.Load())
}

// Token signs a JWT for subject and audience, valid for ttl.
func Token(subject, audience string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "steam",
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("steamtest"))
	if err != nil {
		panic(err)
	}
	return signed
}

// InstallLogin registers the login endpoints and the community landing
// page.
func (s *Server) InstallLogin(l *Login) {
	s.t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(s.t, err)
	l.key = key
	if l.Timestamp == "" {
		l.Timestamp = "171234"
	}
	if len(l.TransferHosts) == 0 {
		l.TransferHosts = []string{CommunityHost, StoreHost, HelpHost}
	}
	l.refreshToken = Token(l.SteamID, "renew", 24*time.Hour)

	s.Handle(CommunityHost, http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("sessionid"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "c0ffee0000000000c0ffee00", Path: "/", Secure: true})
		}
		body := "<html>Sign In</html>"
		if c, err := r.Cookie("steamLoginSecure"); err == nil && c.Value != "" {
			body = "<html>" + l.Username + "</html>"
		}
		_, _ = fmt.Fprint(w, body)
	})

	api := "/IAuthenticationService/"
	s.Handle(APIHost, http.MethodGet, api+"GetPasswordRSAPublicKey/v1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("account_name") != l.Username {
			WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{}})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{
			"publickey_mod": key.N.Text(16),
			"publickey_exp": fmt.Sprintf("%x", key.E),
			"timestamp":     l.Timestamp,
		}})
	})

	s.Handle(APIHost, http.MethodPost, api+"BeginAuthSessionViaCredentials/v1", func(w http.ResponseWriter, r *http.Request) {
		if !l.passwordMatches(r.PostForm.Get("encrypted_password")) || r.PostForm.Get("encryption_timestamp") != l.Timestamp {
			w.Header().Set("X-eresult", "5")
			WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{}})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{
			"client_id":  "8127312312312",
			"request_id": "cmVxdWVzdA==",
			"steamid":    l.SteamID,
			"interval":   5,
		}})
	})

	s.Handle(APIHost, http.MethodPost, api+"UpdateAuthSessionWithSteamGuardCode/v1", func(w http.ResponseWriter, r *http.Request) {
		if r.PostForm.Get("code") != l.GuardCode {
			w.Header().Set("X-eresult", "65")
		} else {
			w.Header().Set("X-eresult", "1")
		}
		WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{}})
	})

	s.Handle(APIHost, http.MethodPost, api+"PollAuthSessionStatus/v1", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"response": map[string]any{
			"refresh_token":          l.refreshToken,
			"access_token":           Token(l.SteamID, "web", time.Hour),
			"had_remote_interaction": l.RemoteInteraction,
			"account_name":           l.Username,
		}})
	})

	s.Handle(LoginHost, http.MethodPost, "/jwt/finalizelogin", func(w http.ResponseWriter, r *http.Request) {
		if l.FinalizeError || r.PostForm.Get("nonce") != l.refreshToken {
			WriteJSON(w, http.StatusOK, map[string]any{"error": 8})
			return
		}
		var transfers []map[string]any
		for _, host := range l.TransferHosts {
			transfers = append(transfers, map[string]any{
				"url":    "https://" + host + "/login/settoken",
				"params": map[string]any{"nonce": "nonce-" + host, "auth": "auth-" + host},
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"steamID":       l.SteamID,
			"redir":         "https://steamcommunity.com/login/home/?goto=",
			"transfer_info": transfers,
		})
	})

	for _, host := range l.TransferHosts {
		s.Handle(host, http.MethodPost, "/login/settoken", func(w http.ResponseWriter, r *http.Request) {
			l.transfers.Add(1)
			if l.TransferDelay > 0 {
				time.Sleep(l.TransferDelay)
			}
			if r.PostForm.Get("steamID") != l.SteamID || r.PostForm.Get("nonce") != "nonce-"+host {
				WriteJSON(w, http.StatusBadRequest, map[string]any{"result": 8})
				return
			}
			for _, missing := range l.MissingCookieHosts {
				if missing == host {
					WriteJSON(w, http.StatusOK, map[string]any{"result": 1})
					return
				}
			}
			token := Token(l.SteamID, host, time.Hour)
			l.accessTokens.Store(host, token)
			http.SetCookie(w, &http.Cookie{
				Name:     "steamLoginSecure",
				Value:    l.SteamID + "%7C%7C" + token,
				Path:     "/",
				Secure:   true,
				HttpOnly: true,
				SameSite: http.SameSiteNoneMode,
			})
			http.SetCookie(w, &http.Cookie{Name: "steamCountry", Value: "US%7C" + host, Path: "/"})
			WriteJSON(w, http.StatusOK, map[string]any{"result": 1})
		})
	}

	s.Handle(LoginHost, http.MethodGet, "/jwt/refresh", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Query().Get("redir")+"/jwt/refreshed", http.StatusFound)
	})
	s.Handle(CommunityHost, http.MethodGet, "/jwt/refreshed", func(w http.ResponseWriter, _ *http.Request) {
		token := Token(l.SteamID, CommunityHost, 2*time.Hour)
		l.accessTokens.Store(CommunityHost, token)
		http.SetCookie(w, &http.Cookie{
			Name:     "steamLoginSecure",
			Value:    l.SteamID + "%7C%7C" + token,
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
		})
		_, _ = fmt.Fprint(w, "ok")
	})

	s.Handle(CommunityHost, http.MethodPost, "/login/logout/", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "steamLoginSecure", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusOK)
	})

	s.Handle(CommunityHost, http.MethodGet, "/pointssummary/ajaxgetasyncconfig", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("steamLoginSecure"); err != nil {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"success": 1, "data": map[string]any{"webapi_token": "webapi-" + l.SteamID}})
	})
}

func (l *Login) passwordMatches(encoded string) bool {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return false
	}
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, l.key, raw)
	if err != nil {
		return false
	}
	return string(plain) == l.Password
}
