package middleware

import "context"

type contextKey string

const ContextKeyViewer contextKey = "viewer"

// ViewerFromContext returns the staff initials of the caller, if known.
func ViewerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyViewer).(string)
	return v, ok && v != ""
}

// WithViewer returns ctx carrying the caller's initials.
func WithViewer(ctx context.Context, initials string) context.Context {
	return context.WithValue(ctx, ContextKeyViewer, initials)
}
