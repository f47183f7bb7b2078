package auth

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc extracts an access token from a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// MiddlewareConfig configures the authentication middleware.
type MiddlewareConfig struct {
	Verifier *Verifier
	// Extractor defaults to BearerTokenExtractor.
	Extractor TokenExtractorFunc
	// OnError writes the rejection. Defaults to a plain 401.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware rejects requests without a valid access token and stores the
// caller Identity in the request context.
func Middleware(cfg MiddlewareConfig) func(next http.Handler) http.Handler {
	if cfg.Extractor == nil {
		cfg.Extractor = BearerTokenExtractor
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cfg.Extractor(r)
			if err != nil {
				cfg.OnError(w, r, err)
				return
			}

			id, err := cfg.Verifier.Verify(token)
			if err != nil {
				cfg.OnError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// CookieTokenExtractor reads the token from a cookie, for browser sessions
// where the identity provider stores the access token client side.
func CookieTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", ErrMissingToken
		}
		return c.Value, nil
	}
}

// FirstOf tries extractors in order and returns the first token found.
func FirstOf(extractors ...TokenExtractorFunc) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		err := ErrMissingToken
		for _, ex := range extractors {
			var token string
			if token, err = ex(r); err == nil {
				return token, nil
			}
		}
		return "", err
	}
}
