package obs

import (
	"context"
	"sync"
)

type routePatternKey struct{}

type requestInfoKey struct{}

// requestInfo is filled in by inner middleware and read back by RequestLogger
// once the handler chain returns.
type requestInfo struct {
	mu      sync.Mutex
	subject string
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}

func withRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	info := &requestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// SetRequestUser records the authenticated subject for the access log. It is a
// no-op outside RequestLogger.
func SetRequestUser(ctx context.Context, subject string) {
	if ctx == nil {
		return
	}
	info, ok := ctx.Value(requestInfoKey{}).(*requestInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	info.subject = subject
	info.mu.Unlock()
}

func (i *requestInfo) user() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.subject
}
