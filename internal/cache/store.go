package cache

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCorrupt is returned by ReadHeader when a file's structure doesn't
// match the fixed entry layout.
var ErrCorrupt = errors.New("cache: corrupt entry")

const maxCacheableBytes = 30 * 1024 * 1024 // 30 MiB

// cacheableContentTypes is the fixed set of content types this proxy caches.
var cacheableContentTypes = map[string]struct{}{
	"application/octet-stream": {},
	"text/css":                 {},
	"text/javascript":          {},
	"image/apng":               {},
	"image/avif":               {},
	"image/gif":                {},
	"image/jpeg":               {},
	"image/png":                {},
	"image/svg+xml":            {},
	"image/webp":               {},
	"image/bmp":                {},
	"image/x-icon":             {},
	"image/tiff":               {},
	"audio/webm":               {},
	"audio/mpeg":               {},
	"audio/ogg":                {},
	"audio/x-wav":              {},
	"audio/mp4":                {},
	"application/ogg":          {},
	"application/pdf":          {},
}

var cacheableStatus = map[int]struct{}{
	200: {}, 201: {}, 202: {}, 203: {}, 204: {}, 205: {}, 206: {},
}

// Cacheable implements the cacheability policy: GET only, a recognized
// 2xx, a body whose size in whole MiB (bodyLen/1048576, rounded down) is
// at most 30, and a content-type in the fixed cacheable set.
func Cacheable(method string, status int, bodyLen int, contentType string) bool {
	if method != "GET" {
		return false
	}
	if _, ok := cacheableStatus[status]; !ok {
		return false
	}
	if bodyLen/1048576 > 30 {
		return false
	}
	ct := stripParams(contentType)
	if ct == "" {
		return false
	}
	_, ok := cacheableContentTypes[ct]
	return ok
}

func stripParams(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}

// Store maps request URIs onto files under root and implements the
// store's read/write/delete/exists operations.
type Store struct {
	root string
}

// NewStore roots a Store at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// PathFor maps a request URI to a path under the cache root, stripping
// the leading "/" so the URI component can't escape the root outright.
// A normalized path that still climbs above root via ".." is rejected —
// The caller is expected to have already validated the URI, but the
// check costs nothing here and fails closed.
func (s *Store) PathFor(uri string) (string, error) {
	clean := filepath.Clean(strings.TrimPrefix(uri, "/"))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cache: uri %q escapes cache root", uri)
	}
	return filepath.Join(s.root, clean), nil
}

// ReadHeader opens path and reads the content-type line and three 8-byte
// little-endian integers: timestamp, ttl, length — in that order.
func (s *Store) ReadHeader(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	ctLine, err := br.ReadString('\n')
	if err != nil {
		return Metadata{}, ErrCorrupt
	}
	contentType := strings.TrimSuffix(ctLine, "\n")

	var raw [24]byte
	if _, err := io.ReadFull(br, raw[:]); err != nil {
		return Metadata{}, ErrCorrupt
	}

	createdSec := binary.LittleEndian.Uint64(raw[0:8])
	ttlSec := binary.LittleEndian.Uint64(raw[8:16])
	length := binary.LittleEndian.Uint64(raw[16:24])

	return Metadata{
		ContentType: contentType,
		CreatedAt:   time.Unix(int64(createdSec), 0),
		TTL:         time.Duration(ttlSec) * time.Second,
		Length:      int64(length),
	}, nil
}

// headerSize returns the number of bytes ReadHeader consumes for a given
// content-type line, to let Read seek straight to the body.
func headerSize(contentType string) int64 {
	return int64(len(contentType)) + 1 + 24
}

// Read seeks past the header described by meta and reads exactly
// meta.Length body bytes.
func (s *Store) Read(path string, meta Metadata) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(headerSize(meta.ContentType), io.SeekStart); err != nil {
		return nil, err
	}
	body := make([]byte, meta.Length)
	if _, err := io.ReadFull(f, body); err != nil {
		return nil, ErrCorrupt
	}
	return body, nil
}

// Write publishes entry atomically: it writes the full file to
// path+"."+uuid and renames it onto the final path only once the write
// has fully succeeded, so a concurrent reader never observes a partial
// file at path. Parent directories are
// created as needed. On any error before the rename, the temp file is
// left behind and the final path is untouched.
func (s *Store) Write(entry Entry) error {
	if err := os.MkdirAll(filepath.Dir(entry.Path), 0o755); err != nil {
		return err
	}

	tmp := entry.Path + "." + uuid.NewString()
	if err := s.writeFile(tmp, entry); err != nil {
		return err
	}
	return os.Rename(tmp, entry.Path)
}

func (s *Store) writeFile(tmp string, entry Entry) error {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	var header bytes.Buffer
	header.WriteString(entry.ContentType)
	header.WriteByte('\n')

	var raw [24]byte
	binary.LittleEndian.PutUint64(raw[0:8], uint64(entry.CreatedAt.Unix()))
	binary.LittleEndian.PutUint64(raw[8:16], uint64(entry.TTL/time.Second))
	binary.LittleEndian.PutUint64(raw[16:24], uint64(len(entry.Body)))
	header.Write(raw[:])

	if _, err := f.Write(header.Bytes()); err != nil {
		return err
	}
	if _, err := f.Write(entry.Body); err != nil {
		return err
	}
	return f.Sync()
}

// Delete removes path, swallowing a not-found error.
func (s *Store) Delete(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether path names an existing regular file.
func (s *Store) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
