// Package httpwire hand-rolls HTTP/1.1 request/response framing, header
// parsing, and serialization directly over a byte stream — no net/http.
// Parsing reads until "\r\n\r\n" terminates the header section, then a
// content-length-bounded body read; everything else (keep-alive, chunked
// decoding, compression) is out of scope.
package httpwire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const version = "HTTP/1.1"

// readHeaderLines reads CRLF-terminated lines from r until it sees the
// blank line that terminates the header section, returning every line
// read before it (the start-line included, at index 0).
func readHeaderLines(r *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return lines, nil
		}
		if !utf8.ValidString(line) {
			return nil, ErrDecode
		}
		lines = append(lines, trimmed)
	}
}

// parseHeaderFields turns "name:value" lines into a Header map, lowercasing
// names and trimming values; duplicates overwrite.
func parseHeaderFields(lines []string) (Header, error) {
	h := NewHeader()
	for _, line := range lines {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, ErrMalformed
		}
		h.Set(line[:idx], line[idx+1:])
	}
	return h, nil
}

// readBody reads exactly the body bytes a parsed header map implies: N
// bytes if content-length is present, none otherwise. Chunked
// transfer-encoding is rejected rather than silently truncated.
func readBody(r io.Reader, h Header) ([]byte, error) {
	if strings.Contains(strings.ToLower(h.Get("transfer-encoding")), "chunked") {
		return nil, ErrChunkedUnsupported
	}

	cl := h.Get("content-length")
	if cl == "" {
		return []byte{}, nil
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return nil, ErrMalformed
	}
	if n == 0 {
		return []byte{}, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// writeHeaders serializes every header as "name:value\r\n" followed by the
// blank line that ends the header section. Output order is unspecified
// (Go map iteration order).
func writeHeaders(w io.Writer, h Header) error {
	for name, value := range h {
		if _, err := fmt.Fprintf(w, "%s:%s\r\n", name, value); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
