package httpwire

import "errors"

// Errors returned by ParseRequest and ParseResponse. Every network failure surfaces unwrapped
// (*net.OpError, io.EOF, ...); these three are the codec's own taxonomy.
var (
	// ErrMalformed covers bad framing, an unknown method, a bad version,
	// a malformed request/status line, or an unparsable request-URI.
	ErrMalformed = errors.New("httpwire: malformed message")

	// ErrDecode is returned when header bytes are not valid UTF-8.
	ErrDecode = errors.New("httpwire: non-UTF-8 header bytes")

	// ErrChunkedUnsupported is returned instead of silently truncating a
	// chunked-encoded body.
	ErrChunkedUnsupported = errors.New("httpwire: chunked transfer-encoding is not supported")
)
