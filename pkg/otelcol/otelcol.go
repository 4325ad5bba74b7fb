package otelcol

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"nextt-backend/pkg/config"
	"nextt-backend/pkg/otelcol/exporters"
)

var Module = fx.Module("otelcol",
	fx.Provide(ProvideExporter),
	fx.Invoke(Register),
)

// ProvideExporter builds the OTLP span exporter selected by OTEL.PROTOCOL.
// With no protocol configured tracing stays disabled.
func ProvideExporter(cfg *config.Config) (trace.SpanExporter, error) {
	switch cfg.Otel.Protocol {
	case "grpc":
		return exporters.ProvideGrpc(cfg)
	case "http":
		return exporters.ProvideHttp(cfg)
	default:
		return nil, nil
	}
}

func defaultTraceProviderOption() []trace.TracerProviderOption {
	return []trace.TracerProviderOption{
		trace.WithResource(resource.Default()),
	}
}

func ProvideTrace(exporter trace.SpanExporter, opts ...trace.TracerProviderOption) *trace.TracerProvider {
	if len(opts) == 0 {
		opts = defaultTraceProviderOption()
	}

	opts = append(opts, trace.WithBatcher(exporter))

	return trace.NewTracerProvider(opts...)
}

type RegisterParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Exporter  trace.SpanExporter `optional:"true"`
}

// Register installs the tracer provider globally; with no exporter configured
// tracing stays on the no-op default.
func Register(p RegisterParams) {
	if p.Exporter == nil {
		return
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", p.Config.AppName),
	))
	if err != nil {
		res = resource.Default()
	}

	tp := ProvideTrace(p.Exporter, trace.WithResource(res))
	otel.SetTracerProvider(tp)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}
