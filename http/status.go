package http

const (
	StatusOK uint16 = 200

	StatusBadRequest uint16 = 400
	StatusNotFound   uint16 = 404

	StatusInternalServerError     uint16 = 500
	StatusNotImplemented          uint16 = 501
	StatusServiceUnavailable      uint16 = 503
	StatusHTTPVersionNotSupported uint16 = 505
)

var (
	unknownStatusCode = "Unknown Status Code"

	// 404 carries this server's own reason phrase.
	statusMessages = map[uint16]string{
		StatusOK: "OK",

		StatusBadRequest: "Bad Request",
		StatusNotFound:   "Page not found",

		StatusInternalServerError:     "Internal Server Error",
		StatusNotImplemented:          "Not Implemented",
		StatusServiceUnavailable:      "Service Unavailable",
		StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
	}
)

// StatusText returns the reason phrase written after the status code.
func StatusText(status uint16) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return unknownStatusCode
}
