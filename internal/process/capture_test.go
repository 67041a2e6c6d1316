package process

import (
	"errors"
	"strings"
	"testing"
)

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "first\nsecond"), nil
	}
	return 0, errors.New("broken pipe")
}

func TestCapture_SplitsAndSanitizes(t *testing.T) {
	buf := NewOutputBuffer(10)
	in := "alpha\n\n\x1b[31mbeta\x1b[0m\r\n\r\ngamma"

	capture(strings.NewReader(in), buf, StreamStdout, 1, noopLogger{})

	got := buf.Snapshot()
	want := []string{"alpha", "beta", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("captured %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCapture_StopsOnReadError(t *testing.T) {
	buf := NewOutputBuffer(10)

	capture(&failingReader{}, buf, StreamStderr, 1, noopLogger{})

	got := buf.Snapshot()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("captured %v, want [first second]", got)
	}
}
