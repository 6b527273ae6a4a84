package respbuilder

import "context"

type respCtxKey struct{}

var respTracerKey = respCtxKey{}

// Tracer is the per request information echoed in every response.
type Tracer struct {
	RemoteAddr string
	AppTraceID string
}

// Inject puts the Tracer into the request context.
// https://golang.org/pkg/context/#WithValue
func Inject(ctx context.Context, stuff Tracer) context.Context {
	return context.WithValue(ctx, respTracerKey, stuff)
}

// Extract get Tracer information from context
func Extract(ctx context.Context) (Tracer, bool) {
	stuff, ok := ctx.Value(respTracerKey).(Tracer)
	if !ok {
		return Tracer{}, false
	}

	return stuff, ok
}

// MustExtract returns an empty Tracer when none was injected.
func MustExtract(ctx context.Context) Tracer {
	stuff, _ := Extract(ctx)
	return stuff
}
