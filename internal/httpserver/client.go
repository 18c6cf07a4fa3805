package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clientCookieTTL is how long a client id (and so its local history) lives.
const clientCookieTTL = 180 * 24 * time.Hour

// ctxClientKey is the context key type for the client id.
type ctxClientKey struct{}

// withClient resolves the signed client cookie, issuing a new client id when
// it is missing or invalid, and stores the id in the request context.
func (s *Server) withClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		tok := bearerToken(r)
		if c, err := r.Cookie(s.cfg.Server.ClientCookie); tok == "" && err == nil {
			tok = c.Value
		}
		if tok != "" {
			if cid, err := s.parseClientToken(tok); err == nil {
				id = cid
			} else {
				s.log.Debug().Err(err).Msg("discarding invalid client cookie")
			}
		}
		if id == "" {
			id = uuid.NewString()
			if err := s.setClientCookie(w, id); err != nil {
				s.log.Error().Err(err).Msg("sign client cookie")
				writeError(w, http.StatusInternalServerError, "client_cookie")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxClientKey{}, id)))
	})
}

// clientID returns the id placed in the context by withClient.
func clientID(r *http.Request) string {
	id, _ := r.Context().Value(ctxClientKey{}).(string)
	return id
}

// signClientToken creates an HS256 JWT carrying the client id.
func (s *Server) signClientToken(id string, exp time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"cid": id,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	return t.SignedString([]byte(s.cfg.Server.JWTSecret))
}

// parseClientToken validates a client token and returns its id.
func (s *Server) parseClientToken(tok string) (string, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Server.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return "", errors.New("invalid client token")
	}
	id, _ := claims["cid"].(string)
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.New("invalid client id")
	}
	return id, nil
}

// setClientCookie writes the signed client cookie with appropriate security attributes.
func (s *Server) setClientCookie(w http.ResponseWriter, id string) error {
	exp := time.Now().Add(clientCookieTTL)
	tok, err := s.signClientToken(id, exp)
	if err != nil {
		return err
	}
	secure := s.cfg.IsProduction()
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required when embedded in a third-party frame
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Server.ClientCookie,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
	return nil
}

// bearerToken extracts a bearer token from the Authorization header.
// Shells that cannot keep third-party cookies send the token this way.
func bearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// clientAddr returns the caller's public IP as resolved by the RealIP
// middleware. Loopback, private and unparsable addresses yield "".
func clientAddr(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return ""
	}
	return ip.String()
}
