// Package email sends transactional email through Postmark, with a log-only
// sender for development. The billing service uses it to alert operators
// about critical sagas.
//
//	sender, err := email.New(cfg, log)
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "ops@coachlatam.com",
//	    Subject:  "Billing saga requires attention",
//	    BodyHTML: html,
//	    Tag:      "billing-critical",
//	})
//
// Invalid parameters wrap ErrInvalidParams; delivery failures wrap
// ErrFailedToSendEmail.
package email
