package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/clipnetic/clipnetic/internal/types"
)

// Authenticator accepts a bearer credential that is either the static token
// or an HS256 JWT signed with the shared secret. Either check may be disabled
// by leaving its field empty.
type Authenticator struct {
	token  string
	secret []byte
	issuer string
}

func New(token, jwtSecret, issuer string) *Authenticator {
	a := &Authenticator{token: token, issuer: issuer}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

// Check validates an Authorization header value. Every failure wraps
// types.ErrAuth.
func (a *Authenticator) Check(header string) error {
	cred, ok := bearer(header)
	if !ok {
		return fmt.Errorf("%w: missing bearer token", types.ErrAuth)
	}
	if a.token != "" && subtle.ConstantTimeCompare([]byte(cred), []byte(a.token)) == 1 {
		return nil
	}
	if a.secret != nil {
		if err := a.parseJWT(cred); err == nil {
			return nil
		} else if strings.Count(cred, ".") == 2 {
			return fmt.Errorf("%w: %w", types.ErrAuth, err)
		}
	}
	return fmt.Errorf("%w: invalid token", types.ErrAuth)
}

func (a *Authenticator) parseJWT(raw string) error {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(a.issuer))
	}
	tok, err := gojwt.ParseWithClaims(raw, &gojwt.RegisteredClaims{}, func(*gojwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !tok.Valid {
		return errors.New("token is not valid")
	}
	return nil
}

func bearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	cred := strings.TrimSpace(header[len(prefix):])
	return cred, cred != ""
}

// Middleware rejects unauthenticated requests with 401 before they reach next.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Check(r.Header.Get("Authorization")); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="clipnetic"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
