package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vklymenko/castcalc/internal/seed"
)

const adminCookieName = "castcalc_admin"

type authService struct {
	db            *sql.DB
	sessionSecret []byte
}

func newAuthService(db *sql.DB, sessionSecret string) *authService {
	return &authService{db: db, sessionSecret: []byte(sessionSecret)}
}

func (a *authService) validateCredentials(email, password string) (bool, error) {
	var passwordHash string
	err := a.db.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, email).Scan(&passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user credentials: %w", err)
	}

	providedHash := seed.HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(passwordHash), []byte(providedHash)) == 1, nil
}

// signValue signs a payload with an HMAC so cookies cannot be forged.
// Both the admin session and the anonymous calculator session use it.
func signValue(secret []byte, payload string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(encoded))
	signature := hex.EncodeToString(mac.Sum(nil))
	return encoded + "." + signature
}

func verifyValue(secret []byte, value string) (string, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return "", false
	}

	encoded := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(encoded))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(provided, expected) {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	if len(decoded) == 0 {
		return "", false
	}

	return string(decoded), true
}

func (a *authService) setSessionCookie(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    signValue(a.sessionSecret, email),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func isAuthenticated(r *http.Request, auth *authService) bool {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil {
		return false
	}

	_, ok := verifyValue(auth.sessionSecret, cookie.Value)
	return ok
}
