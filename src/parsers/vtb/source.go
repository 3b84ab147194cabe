// backend/src/parsers/vtb/source.go
package vtb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source is one XML statement input: a filesystem path, a raw byte buffer,
// or a literal XML string. All extractors read from the same Source; a
// Source is never mutated by a parse.
type Source struct {
	path string
	data []byte
}

// FromPath wraps a statement file on disk.
func FromPath(path string) *Source { return &Source{path: path} }

// FromBytes wraps an in-memory statement, stripping a UTF-8 BOM if present.
func FromBytes(data []byte) *Source {
	return &Source{data: bytes.TrimPrefix(data, utf8BOM)}
}

// FromString accepts either literal XML (anything starting with '<' after
// trimming) or a filesystem path.
func FromString(s string) *Source {
	if strings.HasPrefix(strings.TrimSpace(s), "<") {
		return FromBytes([]byte(s))
	}
	return FromPath(s)
}

// withReader hands fn a reader over the source content for in-memory
// decoding.
func (s *Source) withReader(fn func(r io.Reader) error) error {
	if s.path == "" {
		return fn(skipBOM(bytes.NewReader(s.data)))
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening statement file: %w", err)
	}
	defer f.Close()
	return fn(skipBOM(f))
}

// withFile hands fn a reader backed by a real file. A byte-buffer source is
// materialized to a temporary file so the streaming extractors can scan it
// incrementally; the temporary file is removed on every exit path, whether
// fn succeeds, fails, or panics.
func (s *Source) withFile(fn func(r io.Reader) error) error {
	if s.path != "" {
		return s.withReader(fn)
	}
	tmp, err := os.CreateTemp("", "vtb-stmt-*.xml")
	if err != nil {
		return fmt.Errorf("creating temp statement file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := tmp.Write(s.data); err != nil {
		return fmt.Errorf("writing temp statement file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding temp statement file: %w", err)
	}
	return fn(skipBOM(tmp))
}

// skipBOM drops a leading UTF-8 byte order mark, which some broker exports
// carry in front of the XML declaration.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(3)
	}
	return br
}
