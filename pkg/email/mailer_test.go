package email_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachlatam/coachlatam/pkg/email"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "ops@coachlatam.com",
		Subject:  "Billing saga requires attention",
		BodyHTML: "<p>saga critical</p>",
		BodyText: "saga critical",
		Tag:      "billing-critical",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.SendEmailParams)
		errMsg string
	}{
		{name: "valid", mutate: func(*email.SendEmailParams) {}},
		{name: "empty SendTo", mutate: func(p *email.SendEmailParams) { p.SendTo = "  " }, errMsg: "SendTo is required"},
		{name: "invalid SendTo", mutate: func(p *email.SendEmailParams) { p.SendTo = "ops@" }, errMsg: "SendTo must be a valid email address"},
		{name: "empty Subject", mutate: func(p *email.SendEmailParams) { p.Subject = "" }, errMsg: "Subject is required"},
		{name: "empty BodyHTML", mutate: func(p *email.SendEmailParams) { p.BodyHTML = " " }, errMsg: "BodyHTML is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	sender := email.NewLogSender(slog.New(slog.NewJSONHandler(buf, nil)))

	require.NoError(t, sender.SendEmail(context.Background(), validParams()))
	assert.Contains(t, buf.String(), `"to":"ops@coachlatam.com"`)
	assert.Contains(t, buf.String(), `"tag":"billing-critical"`)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}

func TestNew(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)

	sender, err := email.New(email.Config{SenderEmail: "billing@coachlatam.com"}, log)
	require.NoError(t, err)
	assert.IsType(t, &email.LogSender{}, sender)

	sender, err = email.New(email.Config{
		PostmarkServerToken: "server-token",
		SenderEmail:         "billing@coachlatam.com",
	}, log)
	require.NoError(t, err)
	assert.NotNil(t, sender)
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    email.Config
		errMsg string
	}{
		{
			name:   "missing server token",
			cfg:    email.Config{SenderEmail: "billing@coachlatam.com"},
			errMsg: "PostmarkServerToken is required",
		},
		{
			name:   "invalid sender",
			cfg:    email.Config{PostmarkServerToken: "t", SenderEmail: "billing"},
			errMsg: "SenderEmail must be a valid email address",
		},
		{
			name:   "invalid support",
			cfg:    email.Config{PostmarkServerToken: "t", SenderEmail: "billing@coachlatam.com", SupportEmail: "x@"},
			errMsg: "SupportEmail must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := email.NewPostmarkClient(tt.cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.Panics(t, func() { email.MustNewPostmarkClient(email.Config{}) })
}
