package billing

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coachlatam/coachlatam/handler"
	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

// maxWebhookSize bounds provider notification bodies.
const maxWebhookSize = 1 << 20

// WebhookProcessor is the part of subscription.Service the webhook route uses.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (*subscription.WebhookResult, error)
}

// WebhookHandler receives payment provider notifications.
type WebhookHandler struct {
	svc WebhookProcessor
	log *slog.Logger
}

// NewWebhookHandler returns a handler logging to slog.Default when log is nil.
func NewWebhookHandler(svc WebhookProcessor, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{svc: svc, log: log}
}

func (h *WebhookHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/{provider}", h.receive)
	return r
}

// receive reads the raw body, since signatures cover the exact bytes sent.
// A 2xx acknowledges the event; anything else makes the provider retry.
func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookSize+1))
	if err != nil || len(payload) > maxWebhookSize {
		h.log.WarnContext(r.Context(), "unreadable webhook body",
			logger.Provider(provider),
			slog.Int("size", len(payload)),
			logger.Error(err),
		)
		_ = handler.JSONError(http.StatusBadRequest, handler.ErrorBody{Error: "Invalid webhook payload"}).Render(w, r)
		return
	}

	res, err := h.svc.HandleWebhook(r.Context(), provider, payload, r.Header)
	if err != nil {
		status, body := errorStatus(err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.log.LogAttrs(r.Context(), level, "webhook rejected",
			logger.Provider(provider),
			slog.Int("status_code", status),
			logger.Error(err),
		)
		_ = handler.JSONError(status, body).Render(w, r)
		return
	}

	if err := handler.JSON(res).Render(w, r); err != nil {
		h.log.ErrorContext(r.Context(), "failed to render webhook response", logger.Error(err))
	}
}
