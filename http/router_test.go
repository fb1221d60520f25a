package http

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestCtx(method, path string) *RequestCtx {
	ctx := &RequestCtx{
		Context: context.Background(),
		Request: Request{Method: method, Path: path, Version: ProtocolHTTP11},
	}
	ctx.Response.Reset()
	return ctx
}

func TestRouterMatchesPathAndMethod(t *testing.T) {
	router := NewRouter()
	router.GET("/a", func(ctx *RequestCtx) { ctx.Response.WithText("a") })
	router.Any([]string{"GET", "HEAD"}, "/b", func(ctx *RequestCtx) { ctx.Response.WithText("b") })
	handler := router.Handler()

	ctx := newTestCtx("GET", "/a")
	handler(ctx)
	assert.Equal(t, "a", string(ctx.Response.Body))

	ctx = newTestCtx("HEAD", "/b")
	handler(ctx)
	assert.Equal(t, "b", string(ctx.Response.Body))

	ctx = newTestCtx("POST", "/a")
	handler(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.Status)

	ctx = newTestCtx("GET", "/a/")
	handler(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.Status)
}

func TestRouterCustomNotFound(t *testing.T) {
	router := NewRouter()
	router.NotFound = func(ctx *RequestCtx) {
		ctx.Response.WithStatus(StatusNotFound).WithText("custom")
	}

	ctx := newTestCtx("GET", "/missing")
	router.Handler()(ctx)

	assert.Equal(t, StatusNotFound, ctx.Response.Status)
	assert.Equal(t, "custom", string(ctx.Response.Body))
}

func TestRouterMiddlewareOrder(t *testing.T) {
	var calls []string
	record := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx *RequestCtx) {
				calls = append(calls, name+":before")
				next(ctx)
				calls = append(calls, name+":after")
			}
		}
	}

	router := NewRouter()
	router.Use(record("outer"), record("inner"))
	router.GET("/", func(ctx *RequestCtx) { calls = append(calls, "handler") }, record("route"))

	router.Handler()(newTestCtx("GET", "/"))

	assert.Equal(t, []string{
		"outer:before", "inner:before", "route:before",
		"handler",
		"route:after", "inner:after", "outer:after",
	}, calls)

	calls = nil
	router.Handler()(newTestCtx("GET", "/missing"))
	assert.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, calls)
}

func TestRouterHandlerIsSnapshot(t *testing.T) {
	router := NewRouter()
	handler := router.Handler()
	router.GET("/late", func(ctx *RequestCtx) { ctx.Response.WithText("late") })

	ctx := newTestCtx("GET", "/late")
	handler(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.Status)
}
