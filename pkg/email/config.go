package email

// Config holds email service configuration. Without a server token the
// application falls back to the log sender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"billing@coachlatam.com"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"soporte@coachlatam.com"`
}
