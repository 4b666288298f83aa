package kfmt

import "io"

// lineWriter forwards writes to sink and emits prefix in front of every line.
// A prefix is only emitted once the first byte of its line arrives, so a
// trailing newline does not leave a dangling prefix behind.
type lineWriter struct {
	sink   io.Writer
	prefix []byte

	midLine bool
}

// Write returns the number of bytes of p written to the sink; prefixes are not
// counted.
func (w *lineWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.sink.Write(w.prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		end := len(p)
		for i, b := range p {
			if b == '\n' {
				end = i + 1
				w.midLine = false
				break
			}
		}

		n, err := w.sink.Write(p[:end])
		written += n
		if err != nil {
			return written, err
		}
		p = p[end:]
	}

	return written, nil
}
