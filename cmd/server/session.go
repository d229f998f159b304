package main

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/vklymenko/castcalc/internal/ledger"
)

const ledgerCookieName = "castcalc_session"

// sessionStore hands each browser session its own ledger. Ledgers are
// in-memory only and vanish on process exit; nothing computed is ever
// persisted.
//
// The mutex guards the map. Individual ledgers are unsynchronized: a
// session performs one request at a time.
type sessionStore struct {
	mu        sync.Mutex
	secret    []byte
	ledgers   map[string]*ledger.Ledger
	newLedger func() *ledger.Ledger
}

func newSessionStore(secret string, newLedger func() *ledger.Ledger) *sessionStore {
	return &sessionStore{
		secret:    []byte(secret),
		ledgers:   make(map[string]*ledger.Ledger),
		newLedger: newLedger,
	}
}

// ledgerFor returns the ledger owned by the request's session, creating
// the session (and setting its cookie) on first contact.
func (s *sessionStore) ledgerFor(w http.ResponseWriter, r *http.Request) *ledger.Ledger {
	if cookie, err := r.Cookie(ledgerCookieName); err == nil {
		if id, ok := verifyValue(s.secret, cookie.Value); ok {
			s.mu.Lock()
			led, found := s.ledgers[id]
			s.mu.Unlock()
			if found {
				return led
			}
		}
	}

	id := newSessionID()
	led := s.newLedger()

	s.mu.Lock()
	s.ledgers[id] = led
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     ledgerCookieName,
		Value:    signValue(s.secret, id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return led
}

func newSessionID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
