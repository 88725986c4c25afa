package app

import "context"

type contextKey struct{}

var appContextKey = contextKey{}

// GetAppFromContext returns the App carried by ctx, or nil.
func GetAppFromContext(ctx context.Context) *App {
	application, ok := ctx.Value(appContextKey).(*App)
	if !ok {
		return nil
	}
	return application
}

// SetAppInContext stores the App in ctx for command handlers.
func SetAppInContext(ctx context.Context, application *App) context.Context {
	return context.WithValue(ctx, appContextKey, application)
}
