package http

import (
	"bufio"
	"strconv"
)

// Response is built fresh for every request and written verbatim. Only the
// headers a handler sets are sent; nothing is added implicitly.
type Response struct {
	Status  uint16
	Headers []Header
	Body    []byte
}

func (res *Response) Reset() {
	res.Status = StatusOK
	res.Headers = res.Headers[:0]
	res.Body = nil
}

func (res *Response) WithStatus(status uint16) *Response {
	res.Status = status
	return res
}

func (res *Response) WithText(body string) *Response {
	res.Body = []byte(body)
	return res
}

func (res *Response) WithBody(body []byte) *Response {
	res.Body = body
	return res
}

// SetHeader replaces an existing header with the same name or appends a new
// one, keeping insertion order on the wire.
func (res *Response) SetHeader(name, value string) {
	for i := range res.Headers {
		if res.Headers[i].Name == name {
			res.Headers[i].Value = value
			return
		}
	}
	res.Headers = append(res.Headers, Header{Name: name, Value: value})
}

func (res *Response) HeaderValue(name string) (string, bool) {
	for _, header := range res.Headers {
		if header.Name == name {
			return header.Value, true
		}
	}
	return "", false
}

// Write serializes the status line, headers and body using CRLF line
// endings and flushes bw.
func (res *Response) Write(bw *bufio.Writer) error {
	var statusBuf [3]byte
	bw.WriteString(ProtocolHTTP11)
	bw.WriteByte(' ')
	bw.Write(strconv.AppendUint(statusBuf[:0], uint64(res.Status), 10))
	bw.WriteByte(' ')
	bw.WriteString(StatusText(res.Status))
	bw.WriteString("\r\n")

	for _, header := range res.Headers {
		bw.WriteString(header.Name)
		bw.WriteString(": ")
		bw.WriteString(header.Value)
		bw.WriteString("\r\n")
	}
	bw.WriteString("\r\n")

	if len(res.Body) > 0 {
		bw.Write(res.Body)
	}

	return bw.Flush()
}
