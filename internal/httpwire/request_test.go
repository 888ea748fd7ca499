package httpwire_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbrew/edgecache/internal/httpwire"
)

func TestParseRequestRoundTrip(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\ncontent-length:5\r\ncontent-type:text/plain\r\n\r\nhello"
	req, err := httpwire.ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)

	assert.Equal(t, httpwire.POST, req.Method)
	assert.Equal(t, "/x", req.URI)
	assert.Equal(t, "hello", string(req.Body))
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))

	var buf bytes.Buffer
	require.NoError(t, req.Serialize(&buf))

	req2, err := httpwire.ParseRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, req.Method, req2.Method)
	assert.Equal(t, req.URI, req2.URI)
	assert.Equal(t, req.Body, req2.Body)
	assert.Equal(t, map[string]string(req.Header), map[string]string(req2.Header))
}

func TestParseRequestNoBody(t *testing.T) {
	raw := "GET /foo/bar HTTP/1.1\r\nhost:example.com\r\n\r\n"
	req, err := httpwire.ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	assert.Equal(t, httpwire.GET, req.Method)
	assert.Empty(t, req.Body)
}

func TestParseRequestUnknownMethodFails(t *testing.T) {
	raw := "NOTAVERB / HTTP/1.1\r\n\r\n"
	_, err := httpwire.ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParseRequestBadVersionFails(t *testing.T) {
	raw := "GET / HTTP/1.0\r\n\r\n"
	_, err := httpwire.ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	assert.ErrorIs(t, err, httpwire.ErrMalformed)
}

func TestParseRequestChunkedRejected(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\ntransfer-encoding:chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	_, err := httpwire.ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	assert.ErrorIs(t, err, httpwire.ErrChunkedUnsupported)
}

func TestPrepareForUpstreamStripsHopByHopAndSetsHost(t *testing.T) {
	req := &httpwire.Request{
		Method: httpwire.GET,
		URI:    "/x",
		Header: httpwire.Header{
			"transfer-encoding": "chunked",
			"accept-encoding":   "gzip",
			"content-encoding":  "gzip",
			"x-custom":          "keep-me",
		},
	}
	req.PrepareForUpstream("10.0.0.1:8080")

	assert.False(t, req.Header.Has("transfer-encoding"))
	assert.False(t, req.Header.Has("accept-encoding"))
	assert.False(t, req.Header.Has("content-encoding"))
	assert.Equal(t, "keep-me", req.Header.Get("x-custom"))
	assert.Equal(t, "10.0.0.1:8080", req.Header.Get("host"))
}

func TestParseRequestRelativeURINormalized(t *testing.T) {
	raw := "GET /a/b?x=1 HTTP/1.1\r\n\r\n"
	req, err := httpwire.ParseRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	assert.Equal(t, "/a/b", req.URL.Path)
	assert.Equal(t, "x=1", req.URL.RawQuery)
}
