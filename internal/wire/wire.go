// Package wire frames a streamed answer for HTTP clients.
//
// Every frame is one line. Text fragments are written as 0:<JSON string> and the
// end of the answer as d:{"finishReason":"..."}. JSON string encoding keeps quotes
// and newlines inside a fragment from breaking the line framing.
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	KindText   = '0'
	KindFinish = 'd'

	// MaxFrameSize bounds a single decoded line.
	MaxFrameSize = 1 << 20
)

var ErrMalformedFrame = errors.New("malformed frame")

type finishPayload struct {
	FinishReason string `json:"finishReason"`
}

// Frame is one decoded line of the protocol.
type Frame struct {
	Kind         byte
	Text         string
	FinishReason string
}

// Writer encodes fragments onto w. When w is an http.Flusher every frame is flushed
// as soon as it is written. Writer implements models.Sink.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

func NewWriter(w io.Writer) *Writer {
	wr := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		wr.flusher = f
	}
	return wr
}

func (w *Writer) Fragment(text string) error {
	if text == "" {
		return nil
	}
	b, err := marshal(text)
	if err != nil {
		return err
	}
	return w.writeFrame(KindText, b)
}

func (w *Writer) Done(finishReason string) error {
	b, err := marshal(finishPayload{FinishReason: finishReason})
	if err != nil {
		return err
	}
	return w.writeFrame(KindFinish, b)
}

// marshal encodes v the way JavaScript's JSON.stringify does, without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (w *Writer) writeFrame(kind byte, payload []byte) error {
	line := make([]byte, 0, len(payload)+3)
	line = append(line, kind, ':')
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Reader decodes frames written by Writer.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	return &Reader{scanner: s}
}

// Next returns the next frame, or io.EOF once the input is exhausted. Empty lines are skipped.
func (r *Reader) Next() (Frame, error) {
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		return ParseFrame(line)
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// ParseFrame decodes a single line without its trailing newline.
func ParseFrame(line string) (Frame, error) {
	if len(line) < 2 || line[1] != ':' {
		return Frame{}, fmt.Errorf("%w: %q", ErrMalformedFrame, line)
	}
	payload := []byte(line[2:])
	switch line[0] {
	case KindText:
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return Frame{}, fmt.Errorf("%w: text payload: %v", ErrMalformedFrame, err)
		}
		return Frame{Kind: KindText, Text: text}, nil
	case KindFinish:
		var p finishPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Frame{}, fmt.Errorf("%w: finish payload: %v", ErrMalformedFrame, err)
		}
		return Frame{Kind: KindFinish, FinishReason: p.FinishReason}, nil
	}
	return Frame{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedFrame, line[0])
}
