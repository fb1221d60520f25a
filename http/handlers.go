package http

import (
	"strconv"
	"time"

	"github.com/freekieb7/poolhttp/filesystem"
)

// SleepHandler holds the worker for delay before answering. It exists to
// show that one busy worker leaves the rest of the pool serving. The body
// is fixed and does not follow delay.
func SleepHandler(delay time.Duration) Handler {
	return func(ctx *RequestCtx) {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			ctx.Response.WithStatus(StatusOK).WithText(sleepBody)
		case <-ctx.Context.Done():
			ctx.Response.WithStatus(StatusServiceUnavailable)
		}
	}
}

// IndexHandler serves index.html with Server and Content-Length headers.
// When the file cannot be read the request is handed to fallback.
func IndexHandler(assets filesystem.Filesystem, serverHeader string, fallback Handler) Handler {
	return func(ctx *RequestCtx) {
		content, err := assets.ReadFile(IndexFile)
		if err != nil {
			fallback(ctx)
			return
		}

		ctx.Response.WithStatus(StatusOK)
		ctx.Response.SetHeader("Server", serverHeader)
		ctx.Response.SetHeader("Content-Length", strconv.Itoa(len(content)))
		ctx.Response.WithBody(content)
	}
}

// NotFoundHandler answers 404 with 404.html, or a fixed text body when that
// file is missing too.
func NotFoundHandler(assets filesystem.Filesystem) Handler {
	return func(ctx *RequestCtx) {
		ctx.Response.WithStatus(StatusNotFound)

		content, err := assets.ReadFile(NotFoundFile)
		if err != nil {
			ctx.Response.WithText(notFoundBody)
			return
		}

		ctx.Response.WithBody(content)
	}
}
