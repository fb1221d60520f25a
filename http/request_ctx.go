package http

import (
	"bufio"
	"context"
	"net"

	"github.com/google/uuid"
)

// RequestCtx carries one connection's request through the router. It is
// recycled between connections, so handlers must not keep it after they
// return.
type RequestCtx struct {
	Context    context.Context
	ID         uuid.UUID
	RemoteAddr net.Addr

	Request  Request
	Response Response

	readBuf    []byte
	connWriter *bufio.Writer
}

func newRequestCtx(readBufferSize int) *RequestCtx {
	return &RequestCtx{
		readBuf:    make([]byte, readBufferSize),
		connWriter: bufio.NewWriterSize(nil, DefaultWriteBufferSize),
	}
}

func (reqCtx *RequestCtx) Reset(ctx context.Context, conn net.Conn) {
	reqCtx.Context = ctx
	reqCtx.ID = uuid.New()
	reqCtx.RemoteAddr = conn.RemoteAddr()
	reqCtx.Request = Request{}
	reqCtx.Response.Reset()
	reqCtx.connWriter.Reset(conn)
}

// release drops references to the connection before the ctx goes back to
// the pool.
func (reqCtx *RequestCtx) release() {
	reqCtx.Context = nil
	reqCtx.RemoteAddr = nil
	reqCtx.Response.Body = nil
	reqCtx.connWriter.Reset(nil)
}
