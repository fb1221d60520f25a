// Package telemetry builds the process logger and, when an OTLP endpoint is
// configured, the OpenTelemetry trace, metric and log pipelines.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/poolhttp"

type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP gRPC collector, either host:port or a URL.
	// Empty disables export.
	Endpoint string
	Insecure bool
	LogLevel slog.Level
	// Output receives the text log. Defaults to os.Stderr.
	Output io.Writer
}

type Telemetry struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdownFuncs []func(context.Context) error
}

// Setup builds the logger and providers. Exported providers are also
// installed as the OpenTelemetry globals. Call Shutdown to flush them.
func Setup(ctx context.Context, config Config) (*Telemetry, error) {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	textHandler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: config.LogLevel})

	if config.Endpoint == "" {
		return &Telemetry{
			Logger:         slog.New(textHandler),
			TracerProvider: otel.GetTracerProvider(),
			MeterProvider:  otel.GetMeterProvider(),
		}, nil
	}

	t := &Telemetry{}
	handleErr := func(err error) (*Telemetry, error) {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		))
	if err != nil {
		return handleErr(err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	traceExporter, err := otlptracegrpc.New(ctx, traceOptions(config)...)
	if err != nil {
		return handleErr(err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	t.shutdownFuncs = append(t.shutdownFuncs, tracerProvider.Shutdown)
	t.TracerProvider = tracerProvider
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOptions(config)...)
	if err != nil {
		return handleErr(err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	t.shutdownFuncs = append(t.shutdownFuncs, meterProvider.Shutdown)
	t.MeterProvider = meterProvider
	otel.SetMeterProvider(meterProvider)

	logExporter, err := otlploggrpc.New(ctx, logOptions(config)...)
	if err != nil {
		return handleErr(err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	t.shutdownFuncs = append(t.shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	t.Logger = slog.New(NewTeeHandler(
		textHandler,
		otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(loggerProvider)),
	))

	return t, nil
}

// Shutdown flushes and stops every exporting provider. It is safe to call
// more than once.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs error
	for _, fn := range t.shutdownFuncs {
		errs = errors.Join(errs, fn(ctx))
	}
	t.shutdownFuncs = nil
	return errs
}

func hasScheme(endpoint string) bool {
	return strings.Contains(endpoint, "://")
}

func traceOptions(config Config) []otlptracegrpc.Option {
	var opts []otlptracegrpc.Option
	if hasScheme(config.Endpoint) {
		opts = append(opts, otlptracegrpc.WithEndpointURL(config.Endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(config.Endpoint))
	}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func metricOptions(config Config) []otlpmetricgrpc.Option {
	var opts []otlpmetricgrpc.Option
	if hasScheme(config.Endpoint) {
		opts = append(opts, otlpmetricgrpc.WithEndpointURL(config.Endpoint))
	} else {
		opts = append(opts, otlpmetricgrpc.WithEndpoint(config.Endpoint))
	}
	if config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

func logOptions(config Config) []otlploggrpc.Option {
	var opts []otlploggrpc.Option
	if hasScheme(config.Endpoint) {
		opts = append(opts, otlploggrpc.WithEndpointURL(config.Endpoint))
	} else {
		opts = append(opts, otlploggrpc.WithEndpoint(config.Endpoint))
	}
	if config.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	return opts
}
