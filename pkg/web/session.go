package web

import (
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionExpiry = time.Hour
	sessionCookie = "boxd_session"
)

type Session struct {
	Token      string
	Expiration time.Time
}

// sessionStore keeps login sessions in memory. The browser holds the token
// in a signed and encrypted cookie; the CLI sends it as a bearer token.
// Keys are generated per process, so a restart logs everybody out.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	codec    *securecookie.SecureCookie
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	codec := securecookie.New(securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32))
	codec.MaxAge(int(sessionExpiry.Seconds()))
	return &sessionStore{
		sessions: map[string]Session{},
		codec:    codec,
		now:      time.Now,
	}
}

func (s *sessionStore) create() Session {
	tokenBytes := securecookie.GenerateRandomKey(32)
	session := Session{
		Token:      hex.EncodeToString(tokenBytes),
		Expiration: s.now().Add(sessionExpiry),
	}
	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()
	return session
}

func (s *sessionStore) get(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if s.now().After(session.Expiration) {
		// Expired.
		delete(s.sessions, token)
		return Session{}, false
	}
	return session, true
}

func (s *sessionStore) remove(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *sessionStore) setCookie(w http.ResponseWriter, session Session) error {
	encoded, err := s.codec.Encode(sessionCookie, session.Token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    encoded,
		Path:     "/box",
		Expires:  session.Expiration,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/box",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// token finds the session token on a request, cookie first.
func (s *sessionStore) token(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		var token string
		if err := s.codec.Decode(sessionCookie, c.Value, &token); err == nil {
			return token
		}
	}
	return getBearerToken(r)
}

func getBearerToken(r *http.Request) string {
	authPart := strings.Fields(r.Header.Get("Authorization"))
	if len(authPart) != 2 || !strings.EqualFold(authPart[0], "bearer") {
		return ""
	}
	return authPart[1]
}

func (t api) authReq(route string, next http.HandlerFunc) http.HandlerFunc {
	if route == "POST /box/api/login" || t.config.DevMode {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := t.sessions.get(t.sessions.token(r)); !ok {
			sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

type LoginRequestBody struct {
	Password string `json:"password"`
}

func (t api) login(w http.ResponseWriter, r *http.Request) {
	var requestBody LoginRequestBody
	if err := decodeBody(r, &requestBody); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "Error parsing payload")
		return
	}

	if !t.checkPassword(requestBody.Password) {
		t.log.WithField("origin", getOriginIP(r)).Warn("failed login")
		sendErrorResponse(w, http.StatusForbidden, "Invalid password")
		return
	}

	session := t.sessions.create()
	if err := t.sessions.setCookie(w, session); err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sendResponse(w, map[string]any{
		"success": true,
		"token":   session.Token,
	})
}

func (t api) checkPassword(password string) bool {
	if t.config.DevMode {
		return true
	}
	hash := t.state.Get().AdminPasswordHash
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (t api) logout(w http.ResponseWriter, r *http.Request) {
	t.sessions.remove(t.sessions.token(r))
	clearCookie(w)
	sendResponse(w, map[string]any{
		"success": true,
	})
}
