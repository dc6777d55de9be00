// Package sse implements the server-sent-events framing layer used by the
// streaming endpoints. The wire format is newline-delimited: lines starting
// with "data:" carry a JSON payload, blank lines separate events, and the
// literal "[DONE]" payload signals graceful end of the logical stream.
//
// The [Decoder] is push-based: callers feed raw byte chunks exactly as they
// arrive from the network and receive complete payloads back. Chunk
// boundaries carry no meaning — a payload split across any number of chunks
// (including mid-rune or mid-delimiter) reassembles byte-for-byte, and
// several payloads arriving in one chunk come back in arrival order.
package sse

import (
	"bytes"
)

// dataPrefix marks lines that carry an event payload. All other SSE fields
// (event:, id:, retry:, ":" comments) are dropped.
var dataPrefix = []byte("data:")

// doneSentinel is the literal payload that terminates the logical stream
// (OpenAI convention). It is never forwarded as a payload.
var doneSentinel = []byte("[DONE]")

// maxLineSize is the maximum size of a single event line (1 MB). Large
// tool-call arguments and long completions routinely exceed a few KB, but a
// line past this limit indicates a broken peer rather than a big event.
const maxLineSize = 1 * 1024 * 1024

// lineTooLongError is the concrete type behind ErrLineTooLong.
type lineTooLongError struct{}

func (lineTooLongError) Error() string { return "sse: event line exceeds 1 MB limit" }

// ErrLineTooLong is returned by Feed when a single event line exceeds the
// decoder's line-size limit. The stream cannot be resynchronized after this.
var ErrLineTooLong error = lineTooLongError{}

// Decoder turns a raw byte stream into discrete event payloads. The zero
// value is ready to use. Decoder is not safe for concurrent use; each stream
// owns exactly one.
type Decoder struct {
	buf        []byte
	terminated bool
}

// Feed appends a raw chunk to the decoder's buffer and returns every payload
// whose terminating newline has been observed, in arrival order. Payloads are
// copies; callers may retain them. Once the terminator sentinel has been
// seen, Feed consumes input silently and returns nothing.
//
// Feed returns ErrLineTooLong if the buffered partial line grows beyond the
// line-size limit; the decoder is unusable afterwards.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	if d.terminated {
		return nil, nil
	}

	d.buf = append(d.buf, chunk...)

	var payloads [][]byte
	for {
		newline := bytes.IndexByte(d.buf, '\n')
		if newline < 0 {
			break
		}

		line := d.buf[:newline]
		d.buf = d.buf[newline+1:]

		payload, done := parseLine(line)
		if done {
			d.terminated = true
			d.buf = nil
			return payloads, nil
		}
		if payload != nil {
			payloads = append(payloads, payload)
		}
	}

	if len(d.buf) > maxLineSize {
		return payloads, ErrLineTooLong
	}

	return payloads, nil
}

// Finish flushes the decoder at end of stream. A trailing data line without
// a final newline is treated as complete and returned; any other residual
// bytes are discarded (lenient framing: abnormal closes routinely truncate
// the last separator).
func (d *Decoder) Finish() [][]byte {
	if d.terminated || len(d.buf) == 0 {
		return nil
	}

	line := d.buf
	d.buf = nil

	payload, done := parseLine(line)
	if done {
		d.terminated = true
		return nil
	}
	if payload == nil {
		return nil
	}
	return [][]byte{payload}
}

// Terminated reports whether the [DONE] sentinel has been observed.
func (d *Decoder) Terminated() bool {
	return d.terminated
}

// parseLine classifies a single line. It returns the payload copy for a data
// line, or done=true for the terminator sentinel. Blank lines, comments, and
// non-data fields yield (nil, false).
func parseLine(line []byte) (payload []byte, done bool) {
	// Tolerate CRLF line endings.
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) == 0 {
		return nil, false
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}

	data := bytes.TrimSpace(line[len(dataPrefix):])
	if bytes.Equal(data, doneSentinel) {
		return nil, true
	}
	if len(data) == 0 {
		return nil, false
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, false
}
