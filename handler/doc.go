// Package handler wraps typed request handlers into http.HandlerFunc.
//
// A handler receives a Context and a request struct filled by binders, and
// returns a Response:
//
//	type CancelRequest struct {
//		Reason string `json:"reason"`
//	}
//
//	func cancel(ctx handler.Context, req CancelRequest) handler.Response {
//		res, err := svc.Cancel(ctx, req.Reason)
//		if err != nil {
//			return handler.JSONError(http.StatusInternalServerError, handler.ErrorBody{Error: err.Error()})
//		}
//		return handler.JSON(res)
//	}
//
//	r.Post("/cancel", handler.Wrap(cancel,
//		handler.WithBinders[handler.Context, CancelRequest](binder.JSON()),
//	))
//
// Binding and rendering failures go to the ErrorHandler, which by default
// maps them with StatusOf and writes an ErrorBody.
package handler
