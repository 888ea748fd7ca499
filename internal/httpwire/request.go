package httpwire

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// placeholderOrigin is prepended to a relative request-URI purely so
// net/url can validate and parse it; it never appears on the wire.
const placeholderOrigin = "http://proxy.invalid"

// Request is a parsed HTTP/1.1 request message.
type Request struct {
	Method Method
	URI    string // request-URI exactly as it appeared on the wire
	URL    *url.URL
	Header Header
	Body   []byte
}

// ParseRequest reads one request-line + headers + body from r.
func ParseRequest(r *bufio.Reader) (*Request, error) {
	lines, err := readHeaderLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrMalformed
	}

	method, uri, err := parseRequestLine(lines[0])
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

	parsed, err := parseRequestURI(uri)
	if err != nil {
		return nil, ErrMalformed
	}

	return &Request{
		Method: method,
		URI:    uri,
		URL:    parsed,
		Header: header,
		Body:   body,
	}, nil
}

func parseRequestLine(line string) (Method, string, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", ErrMalformed
	}
	method, uri, ver := parts[0], parts[1], parts[2]

	if !ValidMethod(method) {
		return "", "", ErrMalformed
	}
	if ver != version {
		return "", "", ErrMalformed
	}
	return Method(method), uri, nil
}

// parseRequestURI validates uri as either an absolute URL or a relative
// one beginning with "/", normalizing the latter against a placeholder
// origin.
func parseRequestURI(uri string) (*url.URL, error) {
	if uri == "" {
		return nil, ErrMalformed
	}
	if strings.HasPrefix(uri, "/") {
		return url.Parse(placeholderOrigin + uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, ErrMalformed
	}
	return u, nil
}

// Serialize writes the request-line, headers, and body to w.
func (req *Request) Serialize(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %s %s\r\n", req.Method, req.URI, version); err != nil {
		return err
	}
	if err := writeHeaders(w, req.Header); err != nil {
		return err
	}
	_, err := w.Write(req.Body)
	return err
}

// PrepareForUpstream strips hop-by-hop headers and sets Host to the
// chosen upstream, mutating req in place.
func (req *Request) PrepareForUpstream(upstreamHostPort string) {
	req.Header.StripHopByHop()
	req.Header.Set("host", upstreamHostPort)
}
