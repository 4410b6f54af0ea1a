// Package sse frames chunks as server-sent events: one "data: <json>" record
// per chunk, terminated by "data: [DONE]".
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/docker/angi/pkg/chunk"
)

const (
	ContentType = "text/event-stream"
	Done        = "[DONE]"

	dataPrefix = "data: "
	// Large component states can make a single record long.
	maxRecordSize = 4 * 1024 * 1024
)

// ErrUnterminated is returned when the stream ends without the [DONE] record.
var ErrUnterminated = errors.New("event stream ended without [DONE]")

type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w, flushing after every record when w supports it.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// SetHeaders prepares an HTTP response for streaming.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

func (w *Writer) WriteChunk(c chunk.Chunk) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling chunk: %w", err)
	}
	return w.write(string(data))
}

func (w *Writer) WriteDone() error {
	return w.write(Done)
}

func (w *Writer) write(payload string) error {
	if _, err := fmt.Fprintf(w.w, "%s%s\n\n", dataPrefix, payload); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Read decodes chunks from an event stream until [DONE]. Comments, blank
// lines and non-data fields are skipped, and undecodable records are logged
// and skipped. A stream that ends before [DONE] yields ErrUnterminated.
func Read(r io.Reader) iter.Seq2[chunk.Chunk, error] {
	return func(yield func(chunk.Chunk, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}

			after, ok := strings.CutPrefix(line, dataPrefix)
			if !ok {
				continue
			}
			if strings.TrimSpace(after) == Done {
				return
			}

			c, err := chunk.Decode([]byte(after))
			if err != nil {
				slog.Debug("Skipping undecodable event", "data", after, "error", err)
				continue
			}
			if !yield(c, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(chunk.Chunk{}, err)
			return
		}
		yield(chunk.Chunk{}, ErrUnterminated)
	}
}
