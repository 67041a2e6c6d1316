package process

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize removes colour (SGR) and erase-line (EL) sequences from a captured
// output line: every ESC '[' followed by digits and semicolons and ending in
// 'm' or 'K'. All other bytes, including other escape sequences and stray
// ESC characters, are copied unchanged. A line without such sequences is
// returned as is.
func Sanitize(line string) string {
	i := strings.IndexByte(line, ansi.ESC)
	if i < 0 {
		return line
	}

	var b strings.Builder
	b.Grow(len(line))
	for i >= 0 {
		b.WriteString(line[:i])
		line = line[i:]

		seq, _, n, _ := ansi.DecodeSequence(line, ansi.NormalState, nil)
		if n <= 0 {
			n = 1
		}
		if !isColourOrErase(seq) {
			b.WriteString(line[:n])
		}
		line = line[n:]
		i = strings.IndexByte(line, ansi.ESC)
	}
	b.WriteString(line)
	return b.String()
}

// isColourOrErase reports whether seq is exactly ESC '[' [0-9;]* ('m' | 'K').
func isColourOrErase(seq string) bool {
	if len(seq) < 3 || seq[0] != ansi.ESC || seq[1] != '[' {
		return false
	}
	final := seq[len(seq)-1]
	if final != 'm' && final != 'K' {
		return false
	}
	for _, c := range []byte(seq[2 : len(seq)-1]) {
		if (c < '0' || c > '9') && c != ';' {
			return false
		}
	}
	return true
}
