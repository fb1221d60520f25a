package http

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/encoding/unicode"
)

// ServeConn answers exactly one request on conn and closes it.
//
// The request is taken from a single Read into a buffer of
// Config.ReadBufferSize bytes. Requests that are larger, or that arrive
// split over several packets, are interpreted from that first read only.
// A read of zero bytes closes the connection without a response.
//
// After the response is written the connection is half-closed and whatever
// the peer still sends is discarded for up to lingerTimeout, so that unread
// input does not turn the final Close into a reset.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.Logger.Debug("closing connection failed", "error", err)
		}
	}()

	// Shutdown gave up waiting before this connection got a worker.
	if ctx.Err() != nil {
		return
	}

	reqCtx := s.requestCtxPool.Get().(*RequestCtx)
	reqCtx.Reset(ctx, conn)
	defer func() {
		reqCtx.release()
		s.requestCtxPool.Put(reqCtx)
	}()

	peer := addrString(reqCtx.RemoteAddr)

	if s.Config.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.Config.ReadTimeout)); err != nil {
			s.Logger.Warn("setting read deadline failed", "peer", peer, "error", err)
		}
	}

	n, err := conn.Read(reqCtx.readBuf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			s.Logger.Warn("reading request failed", "peer", peer, "error", err)
		}
		return
	}

	s.handle(reqCtx, decodeRequest(reqCtx.readBuf[:n]))

	s.responses.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("http.response.status_code", int(reqCtx.Response.Status))))

	if err := reqCtx.Response.Write(reqCtx.connWriter); err != nil {
		s.Logger.Warn("writing response failed",
			"peer", peer,
			"request_id", reqCtx.ID.String(),
			"error", err)
		return
	}

	s.linger(conn, peer)
}

type closeWriter interface {
	CloseWrite() error
}

// linger sends FIN and reads until the peer closes, lingerTimeout passes or
// maxLingerBytes have been discarded. Connections without a write half to
// close are left alone.
func (s *Server) linger(conn net.Conn, peer string) {
	cw, ok := conn.(closeWriter)
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		s.Logger.Debug("half-closing connection failed", "peer", peer, "error", err)
		return
	}
	if err := conn.SetReadDeadline(time.Now().Add(lingerTimeout)); err != nil {
		return
	}

	discarded, err := io.CopyN(io.Discard, conn, maxLingerBytes)
	if discarded > 0 {
		s.Logger.Debug("discarded unread request bytes", "peer", peer, "bytes", discarded, "error", err)
	}
}

// handle turns the raw request text into a response: malformed request
// lines, unsupported versions and non-GET methods are answered here, the
// rest goes to the router.
func (s *Server) handle(reqCtx *RequestCtx, raw string) {
	request, err := ParseRequest(raw)
	if err != nil {
		s.Logger.Debug("rejecting request", "request_id", reqCtx.ID.String(), "error", err)
		reqCtx.Response.WithStatus(StatusBadRequest)
		return
	}
	reqCtx.Request = request

	switch {
	case request.Version != ProtocolHTTP11:
		reqCtx.Response.WithStatus(StatusHTTPVersionNotSupported)
	case request.Method != MethodGet:
		reqCtx.Response.WithStatus(StatusNotImplemented)
	default:
		s.routeHandler()(reqCtx)
	}
}

func (s *Server) routeHandler() Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.Router.Handler()
	})
	return s.handler
}

// decodeRequest converts the request bytes to text, replacing invalid UTF-8
// sequences with U+FFFD.
func decodeRequest(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(decoded)
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
