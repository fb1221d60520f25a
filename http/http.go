package http

import "time"

const (
	DefaultName            = "poolhttp"
	DefaultVersion         = "0.1.0"
	DefaultAddr            = "localhost:8080"
	DefaultWorkers         = 2
	DefaultReadBufferSize  = 1024 // one read per connection, no reassembly
	DefaultWriteBufferSize = 4096
	DefaultSleepDelay      = 5 * time.Second

	lingerTimeout  = 250 * time.Millisecond
	maxLingerBytes = 256 << 10

	IndexFile    = "index.html"
	NotFoundFile = "404.html"

	MethodGet      = "GET"
	ProtocolHTTP11 = "HTTP/1.1"

	notFoundBody = "Page not found."
	sleepBody    = "Slept for 3 seconds"
)

type Handler func(ctx *RequestCtx)

type Header struct {
	Name  string
	Value string
}
