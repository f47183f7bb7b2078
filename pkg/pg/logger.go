package pg

import "context"

// Logger is the subset of *slog.Logger used for migration output.
type Logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
