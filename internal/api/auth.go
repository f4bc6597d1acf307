// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/itinera/itinera/internal/models"
)

// SessionCookie is the cookie carrying the signed session reference.
const SessionCookie = "itinera_session"

// signSession wraps the session token in a signed JWT. The JWT proves the
// cookie was minted by this server; whether the session is still valid is
// the engine's call.
func (s *Server) signSession(sess models.Session) (string, error) {
	claims := jwt.MapClaims{
		"sid": sess.Token,
		"exp": sess.ExpiresAt.Unix(),
		"iat": sess.CreatedAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// sessionFromRequest extracts and verifies the session token from the
// request cookie. Returns an empty string when no usable cookie is present.
func (s *Server) sessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}

	token, err := jwt.Parse(cookie.Value, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sid, _ := claims["sid"].(string)
	return sid
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess models.Session) error {
	signed, err := s.signSession(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireAuth rejects requests without a live session.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := s.sessionFromRequest(r)
		if sid == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ok, err := s.core.Authenticate(r.Context(), sid)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "session check unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "session expired or revoked")
			return
		}
		next.ServeHTTP(w, r)
	})
}
