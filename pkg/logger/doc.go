// Package logger builds *slog.Logger instances with functional options,
// helper attribute constructors, and injection of values stored in the
// logging context.
//
// New picks slog.NewTextHandler or slog.NewJSONHandler based on the configured
// Format and wraps it with LogHandlerDecorator, which runs every registered
// ContextExtractor before delegating to the underlying handler.
//
// Attribute helpers such as Error, UserID, SagaID, and Provider keep key
// names consistent across the billing code:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "coachlatam"),
//	    logger.WithContextExtractors(auth.UserIDExtractor),
//	)
//	log.ErrorContext(ctx, "compensation failed",
//	    logger.SagaID(sagaID),
//	    logger.Provider("paypal"),
//	    logger.Error(err),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed without a nil check.
package logger
