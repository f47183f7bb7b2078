// Package auth verifies access tokens issued by the external identity
// provider and exposes the caller Identity to handlers.
//
// Session management stays with the provider; this package only checks the
// HS256 signature, expiry, audience, and issuer with
// github.com/golang-jwt/jwt/v5 and maps the subject to a user id.
//
//	v, err := auth.NewVerifier(cfg)
//	r.Use(auth.Middleware(auth.MiddlewareConfig{Verifier: v}))
//
//	id, err := auth.RequireIdentity(ctx)
package auth
