package input

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// ReadLine reads one line from rd, without its line ending. It returns early
// with ctx.Err() when ctx is done; the pending read is then abandoned.
// Callers reading several lines should pass the same *bufio.Reader each time.
func ReadLine(ctx context.Context, rd io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		line, err := bufio.NewReader(rd).ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- result{line: strings.TrimRight(line, "\r\n"), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.line, r.err
	}
}
