package auth

// Config describes how access tokens issued by the identity provider are verified.
type Config struct {
	JWTSecret string `env:"AUTH_JWT_SECRET,notEmpty"`                      // JWTSecret is the HS256 secret shared with the identity provider.
	Audience  string `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"` // Audience is the expected "aud" claim. Empty disables the check.
	Issuer    string `env:"AUTH_JWT_ISSUER"`                              // Issuer is the expected "iss" claim. Empty disables the check.
}
