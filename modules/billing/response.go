package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/coachlatam/coachlatam/handler"
	"github.com/coachlatam/coachlatam/pkg/auth"
	"github.com/coachlatam/coachlatam/pkg/logger"
	"github.com/coachlatam/coachlatam/svc/coupon"
	"github.com/coachlatam/coachlatam/svc/subscription"
)

// Envelope is the success body of the subscription routes.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(message string, data any) handler.Response {
	return handler.JSON(Envelope{Success: true, Message: message, Data: data})
}

// errorStatus maps a service failure to an HTTP status and error body.
func errorStatus(err error) (int, handler.ErrorBody) {
	var subErr *subscription.Error
	if errors.As(err, &subErr) {
		body := handler.ErrorBody{
			Error:    subErr.Message,
			Details:  subErr.Details,
			Critical: subErr.Critical,
		}
		switch {
		case errors.Is(subErr.Kind, subscription.ErrUnauthenticated):
			return http.StatusUnauthorized, body
		case errors.Is(subErr.Kind, subscription.ErrValidation):
			return http.StatusBadRequest, body
		case errors.Is(subErr.Kind, subscription.ErrNotFound):
			return http.StatusNotFound, body
		case errors.Is(subErr.Kind, subscription.ErrConflict):
			return http.StatusConflict, body
		default:
			return http.StatusInternalServerError, body
		}
	}

	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, coupon.ErrMissingUser):
		return http.StatusUnauthorized, handler.ErrorBody{Error: "Unauthorized"}
	case errors.Is(err, coupon.ErrEmptyCode):
		return http.StatusBadRequest, handler.ErrorBody{Error: "Coupon code is required"}
	case errors.Is(err, coupon.ErrDecisionFailed):
		return http.StatusInternalServerError, handler.ErrorBody{Error: "Failed to validate coupon"}
	}

	status, key := handler.StatusOf(err)
	return status, handler.ErrorBody{Error: key}
}

// failure logs err and renders it. Server errors log at error, the rest at warn.
func failure(ctx handler.Context, log *slog.Logger, err error) handler.Response {
	status, body := errorStatus(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	r := ctx.Request()
	log.LogAttrs(ctx, level, "billing request failed",
		logger.RequestID(middleware.GetReqID(r.Context())),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("path", r.URL.Path),
		slog.Bool("critical", body.Critical),
	)

	return handler.JSONError(status, body)
}

// errorHandler renders binding and rendering failures of wrapped handlers.
func errorHandler(log *slog.Logger) handler.ErrorHandler[handler.Context] {
	return func(ctx handler.Context, err error) {
		resp := failure(ctx, log, err)
		if renderErr := resp.Render(ctx.ResponseWriter(), ctx.Request()); renderErr != nil {
			log.ErrorContext(ctx, "failed to render error response", logger.Error(renderErr))
		}
	}
}

// Unauthorized is an auth.MiddlewareConfig OnError that writes the JSON 401 body.
func Unauthorized(w http.ResponseWriter, r *http.Request, _ error) {
	_ = handler.JSONError(http.StatusUnauthorized, handler.ErrorBody{Error: "Unauthorized"}).Render(w, r)
}
