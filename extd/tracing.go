package extd

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
	jaegerPropagator "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/contrib/propagators/ot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
)

// SetupTracing registers the propagators and, when an endpoint is configured, the jaeger exporter.
// The returned function flushes pending spans.
func SetupTracing(ctx context.Context, cfg config.Tracing) (shutdown func(), err error) {
	shutdown = func() {}

	// register ot propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		&ot.OT{},
		&jaegerPropagator.Jaeger{},
	))

	if cfg.JaegerEndpoint == "" {
		ylog.Debug(ctx, "tracing: no jaeger endpoint, spans are not exported")
		return
	}

	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)),
	)
	if err != nil {
		err = fmt.Errorf("cannot setup jaeger exporter: %w", err)
		return
	}

	env := cfg.Environment
	if env == "" {
		env = "development"
	}

	tp := tracer.InitTraceProvider(exp, AppName, env)
	shutdown = func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _err := tp.Shutdown(flushCtx); _err != nil {
			ylog.Error(ctx, "tracing: shutdown error", ylog.KV("error", _err))
		}
	}

	return
}
