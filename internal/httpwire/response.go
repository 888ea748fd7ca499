package httpwire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response is a parsed HTTP/1.1 response message.
type Response struct {
	Status int
	Reason string
	Header Header
	Body   []byte
}

// ParseResponse reads one status-line + headers + body from r.
func ParseResponse(r *bufio.Reader) (*Response, error) {
	lines, err := readHeaderLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrMalformed
	}

	status, reason, err := parseStatusLine(lines[0])
	if err != nil {
		return nil, err
	}

	header, err := parseHeaderFields(lines[1:])
	if err != nil {
		return nil, err
	}

	body, err := readBody(r, header)
	if err != nil {
		return nil, err
	}

	return &Response{Status: status, Reason: reason, Header: header, Body: body}, nil
}

func parseStatusLine(line string) (int, string, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return 0, "", ErrMalformed
	}
	ver, codeStr, reason := parts[0], parts[1], parts[2]

	if ver != version {
		return 0, "", ErrMalformed
	}
	if len(codeStr) != 3 {
		return 0, "", ErrMalformed
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return 0, "", ErrMalformed
	}

	folded, ok := FoldStatus(code)
	if !ok {
		return 0, "", ErrMalformed
	}
	return folded, reason, nil
}

// Serialize writes the status-line, headers, and body to w.
func (resp *Response) Serialize(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %03d %s\r\n", version, resp.Status, resp.Reason); err != nil {
		return err
	}
	if err := writeHeaders(w, resp.Header); err != nil {
		return err
	}
	_, err := w.Write(resp.Body)
	return err
}

// NewResponse builds a minimal Response with content-length set from the
// given body, for the proxy's own synthesized replies (400/500, cache
// hits).
func NewResponse(status int, reason string, contentType string, body []byte) *Response {
	h := NewHeader()
	if contentType != "" {
		h.Set("content-type", contentType)
	}
	h.Set("content-length", strconv.Itoa(len(body)))
	return &Response{Status: status, Reason: reason, Header: h, Body: body}
}

// SetServerIdentifier sets the "server" header the proxy stamps on every
// reply to a client.
func (resp *Response) SetServerIdentifier(id string) {
	resp.Header.Set("server", id)
}
