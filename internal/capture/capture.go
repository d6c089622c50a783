// Package capture buffers request and response bodies so they can be logged
// and still reach their consumer byte for byte.
//
// Memory use is bounded by a per-call ceiling. A request body longer than
// the ceiling is logged as a prefix and handed to the handler in full. A
// response body longer than the ceiling switches the recorder to
// pass-through: the buffered prefix and everything after it go straight to
// the client, and only the prefix is available for logging.
package capture

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"
)

const TruncatedMarker = "...[truncated]"

// Body is a captured prefix of a body. Truncated reports that the full body
// was longer than Data.
type Body struct {
	Data      []byte
	Truncated bool
}

// String renders the body for a log line with Decode, plus TruncatedMarker
// when applicable.
func (b Body) String() string {
	if !b.Truncated {
		return Decode(b.Data)
	}
	return Decode(trimPartialRune(b.Data)) + TruncatedMarker
}

// trimPartialRune drops a multibyte rune cut off by the capture limit.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// Decode returns b as text. Valid UTF-8 is returned as is; anything else is
// returned Go-quoted, which keeps every byte and is deterministic.
func Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strconv.Quote(string(b))
}

// ReadRequestBody reads up to limit bytes of r.Body and replaces r.Body with
// a reader that yields the full original body again. The error is the read
// error, if any; the handler will see the same error after the captured
// bytes.
func ReadRequestBody(r *http.Request, limit int) (Body, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return Body{}, nil
	}

	orig := r.Body
	buf, err := io.ReadAll(io.LimitReader(orig, int64(limit)+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), orig), orig}

	if len(buf) > limit {
		return Body{Data: buf[:limit:limit], Truncated: true}, err
	}
	return Body{Data: buf}, err
}
