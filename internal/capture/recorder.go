package capture

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
)

var ErrDrained = errors.New("capture: response already drained")

// Response is a drained response: everything needed to emit an equivalent
// one-shot response.
type Response struct {
	StatusCode int
	Header     http.Header
	MediaType  string
	Body       Body
	// Size is the full body length, including bytes not kept in Body.
	Size int64
	// Committed means the body overflowed and was already sent to the client;
	// Rehydrate is a no-op for it.
	Committed bool
}

// Recorder is an http.ResponseWriter that holds the response in memory
// instead of sending it. It owns its own header map, so nothing reaches the
// underlying writer before Rehydrate unless the body overflows.
type Recorder struct {
	w      http.ResponseWriter
	limit  int
	header http.Header

	status      int
	wroteHeader bool
	buf         bytes.Buffer
	size        int64
	overflowed  bool
	drained     bool
}

func NewRecorder(w http.ResponseWriter, limit int) *Recorder {
	return &Recorder{
		w:      w,
		limit:  limit,
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (rec *Recorder) Header() http.Header {
	return rec.header
}

func (rec *Recorder) WriteHeader(statusCode int) {
	if rec.wroteHeader || rec.drained {
		return
	}
	// informational responses are not the final status
	if statusCode >= 100 && statusCode < 200 {
		return
	}
	rec.status = statusCode
	rec.wroteHeader = true
}

func (rec *Recorder) Write(p []byte) (int, error) {
	if rec.drained {
		return 0, ErrDrained
	}
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	rec.size += int64(len(p))

	if rec.overflowed {
		return rec.w.Write(p)
	}
	if rec.buf.Len()+len(p) <= rec.limit {
		return rec.buf.Write(p)
	}

	room := rec.limit - rec.buf.Len()
	rec.buf.Write(p[:room])
	rec.overflowed = true
	if err := rec.commit(); err != nil {
		return 0, err
	}
	if n, err := rec.w.Write(p[room:]); err != nil {
		return room + n, err
	}
	return len(p), nil
}

// Flush is a no-op while buffering.
func (rec *Recorder) Flush() {
	if !rec.overflowed {
		return
	}
	if f, ok := rec.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *Recorder) Unwrap() http.ResponseWriter {
	return rec.w
}

// StatusCode is the status written so far, 200 if none.
func (rec *Recorder) StatusCode() int {
	return rec.status
}

// HeaderWritten reports whether the handler set a final status.
func (rec *Recorder) HeaderWritten() bool {
	return rec.wroteHeader
}

// Drain hands over the buffered response. The recorder is unusable
// afterwards: writes fail with ErrDrained and a second Drain errors.
func (rec *Recorder) Drain() (*Response, error) {
	if rec.drained {
		return nil, ErrDrained
	}
	rec.drained = true

	data := bytes.Clone(rec.buf.Bytes())
	if data == nil {
		data = []byte{}
	}
	rec.buf = bytes.Buffer{}

	resp := &Response{
		StatusCode: rec.status,
		Header:     rec.header.Clone(),
		Body:       Body{Data: data, Truncated: rec.overflowed},
		Size:       rec.size,
		Committed:  rec.overflowed,
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			resp.MediaType = mt
		}
	}
	return resp, nil
}

// commit sends the status, headers and buffered prefix ahead of the
// pass-through remainder.
func (rec *Recorder) commit() error {
	copyHeader(rec.w.Header(), rec.header)
	rec.w.WriteHeader(rec.status)
	_, err := rec.w.Write(rec.buf.Bytes())
	return err
}

// Rehydrate emits resp on w as a single response with the same status,
// headers and body bytes.
func Rehydrate(w http.ResponseWriter, resp *Response) error {
	if resp.Committed {
		return nil
	}
	copyHeader(w.Header(), resp.Header)
	if resp.MediaType != "" && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", resp.MediaType)
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body.Data) == 0 {
		return nil
	}
	_, err := w.Write(resp.Body.Data)
	return err
}

func copyHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
}
