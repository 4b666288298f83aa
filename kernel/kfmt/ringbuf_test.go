package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBootLog(t *testing.T) {
	const msg = "[pmm] frames 0x80400-0x84000"

	specs := []struct {
		descr      string
		head       int
		writes     []string
		exp        string
		expDropped int
	}{
		{"empty", 0, nil, "", 0},
		{"single write", 0, []string{msg}, msg, 0},
		{"wraps around the end", bootLogSize - 5, []string{msg, "\n", msg}, msg + "\n" + msg, 0},
		{
			"overflow keeps the newest bytes",
			0,
			[]string{strings.Repeat("a", bootLogSize-3), "bbbbbb"},
			strings.Repeat("a", bootLogSize-6) + "bbbbbb",
			3,
		},
	}

	var lg bootLog
	for specIndex, spec := range specs {
		lg.reset()
		lg.head = spec.head

		for _, w := range spec.writes {
			if n, err := lg.Write([]byte(w)); err != nil || n != len(w) {
				t.Fatalf("[spec %d] expected to write %d bytes; wrote %d (%v)", specIndex, len(w), n, err)
			}
		}

		var out bytes.Buffer
		if _, err := io.Copy(&out, &lg); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if got := out.String(); got != spec.exp {
			t.Errorf("[spec %d: %s] expected to read %d bytes; got %d", specIndex, spec.descr, len(spec.exp), len(got))
		}
		if lg.dropped != spec.expDropped {
			t.Errorf("[spec %d: %s] expected %d dropped bytes; got %d", specIndex, spec.descr, spec.expDropped, lg.dropped)
		}
		if lg.size != 0 {
			t.Errorf("[spec %d: %s] expected the log to be drained", specIndex, spec.descr)
		}
	}
}

func TestBootLogShortReads(t *testing.T) {
	var lg bootLog
	lg.head = bootLogSize - 2
	lg.Write([]byte("hello"))

	var (
		p   = make([]byte, 4)
		got []string
	)
	for {
		n, err := lg.Read(p)
		if err == io.EOF {
			break
		}
		got = append(got, string(p[:n]))
	}

	// The first read stops at the physical end of the buffer.
	if exp := []string{"he", "llo"}; len(got) != 2 || got[0] != exp[0] || got[1] != exp[1] {
		t.Fatalf("expected reads %v; got %v", exp, got)
	}
}
