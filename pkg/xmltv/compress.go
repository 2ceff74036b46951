package xmltv

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Compression identifies the container format of a guide document.
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gzip"
	CompressionBzip2 Compression = "bzip2"
	CompressionXZ    Compression = "xz"
)

// Decompress sniffs the magic bytes of r and returns a reader yielding the
// decompressed document. Unrecognised input is passed through unchanged.
// Errors in the compressed stream surface from Read on the returned reader.
func Decompress(r io.Reader) (io.Reader, Compression, error) {
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("peeking header: %w", err)
	}

	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, CompressionGzip, nil

	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		return bzip2.NewReader(br), CompressionBzip2, nil

	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' &&
		header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("creating xz reader: %w", err)
		}
		return xzr, CompressionXZ, nil
	}

	return br, CompressionNone, nil
}
