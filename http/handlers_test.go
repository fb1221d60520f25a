package http

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/freekieb7/poolhttp/filesystem"
	"github.com/freekieb7/poolhttp/test"
	"github.com/stretchr/testify/assert"
)

const (
	indexPage    = "<html><body><h1>Welcome</h1></body></html>"
	notFoundPage = "<html><body><h1>Nothing here</h1></body></html>"
)

func TestIndexHandler(t *testing.T) {
	assets := filesystem.NewLocalFileSystem(test.WriteAssets(t, map[string]string{
		IndexFile: indexPage,
	}))

	fallbackCalled := false
	handler := IndexHandler(assets, "poolhttp/0.1.0", func(ctx *RequestCtx) { fallbackCalled = true })

	ctx := newTestCtx("GET", "/")
	handler(ctx)

	assert.False(t, fallbackCalled)
	assert.Equal(t, StatusOK, ctx.Response.Status)
	assert.Equal(t, []Header{
		{Name: "Server", Value: "poolhttp/0.1.0"},
		{Name: "Content-Length", Value: strconv.Itoa(len(indexPage))},
	}, ctx.Response.Headers)
	assert.Equal(t, indexPage, string(ctx.Response.Body))
}

func TestIndexHandlerFallsThroughWhenMissing(t *testing.T) {
	assets := filesystem.NewLocalFileSystem(test.WriteAssets(t, nil))

	fallbackCalled := false
	handler := IndexHandler(assets, "poolhttp/0.1.0", func(ctx *RequestCtx) { fallbackCalled = true })

	ctx := newTestCtx("GET", "/index")
	handler(ctx)

	assert.True(t, fallbackCalled)
	assert.Empty(t, ctx.Response.Headers)
}

func TestNotFoundHandler(t *testing.T) {
	withPage := filesystem.NewLocalFileSystem(test.WriteAssets(t, map[string]string{
		NotFoundFile: notFoundPage,
	}))

	ctx := newTestCtx("GET", "/unknown/path")
	NotFoundHandler(withPage)(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.Status)
	assert.Equal(t, notFoundPage, string(ctx.Response.Body))
	assert.Empty(t, ctx.Response.Headers)

	withoutPage := filesystem.NewLocalFileSystem(test.WriteAssets(t, nil))

	ctx = newTestCtx("GET", "/unknown/path")
	NotFoundHandler(withoutPage)(ctx)
	assert.Equal(t, StatusNotFound, ctx.Response.Status)
	assert.Equal(t, "Page not found.", string(ctx.Response.Body))
}

func TestSleepHandler(t *testing.T) {
	ctx := newTestCtx("GET", "/sleep")

	start := time.Now()
	SleepHandler(20 * time.Millisecond)(ctx)

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, StatusOK, ctx.Response.Status)
	assert.Equal(t, "Slept for 3 seconds", string(ctx.Response.Body), "body does not follow the delay")
}

func TestSleepHandlerCancelled(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	ctx := newTestCtx("GET", "/sleep")
	ctx.Context = cancelled

	done := make(chan struct{})
	go func() {
		SleepHandler(time.Hour)(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep handler ignored cancellation")
	}
	assert.Equal(t, StatusServiceUnavailable, ctx.Response.Status)
	assert.Empty(t, ctx.Response.Body)
}
