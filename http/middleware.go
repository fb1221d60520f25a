package http

import (
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/freekieb7/poolhttp/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Middleware func(next Handler) Handler

// RecoverMiddleware turns a handler panic into an empty 500 response so the
// client still receives a well-formed reply.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("handler panicked",
						"request_id", ctx.ID.String(),
						"path", ctx.Request.Path,
						"panic", recovered,
						"stack", string(debug.Stack()))

					ctx.Response.Reset()
					ctx.Response.WithStatus(StatusInternalServerError)
				}
			}()

			next(ctx)
		}
	}
}

func LogMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			start := time.Now()
			next(ctx)

			attrs := []any{
				"request_id", ctx.ID.String(),
				"method", ctx.Request.Method,
				"path", ctx.Request.Path,
				"status", ctx.Response.Status,
				"duration", time.Since(start),
			}
			if id, ok := worker.WorkerID(ctx.Context); ok {
				attrs = append(attrs, "worker", id)
			}
			logger.InfoContext(ctx.Context, "handled request", attrs...)
		}
	}
}

// TraceMiddleware opens a server span around the rest of the chain and
// exposes it to handlers through ctx.Context.
func TraceMiddleware(tracer trace.Tracer) Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			parent := ctx.Context
			spanCtx, span := tracer.Start(parent, ctx.Request.Method+" "+ctx.Request.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", ctx.Request.Method),
					attribute.String("url.path", ctx.Request.Path),
					attribute.String("network.protocol.version", "1.1"),
					attribute.String("request.id", ctx.ID.String()),
				))
			defer span.End()

			ctx.Context = spanCtx
			next(ctx)
			ctx.Context = parent

			span.SetAttributes(attribute.Int("http.response.status_code", int(ctx.Response.Status)))
			if ctx.Response.Status >= StatusInternalServerError {
				span.SetStatus(codes.Error, StatusText(ctx.Response.Status))
			}
		}
	}
}
