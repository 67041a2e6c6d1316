package process

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "speed 10s/60s/15m 1234.5 H/s", "speed 10s/60s/15m 1234.5 H/s"},
		{"colour", "\x1b[32mOK\x1b[0m", "OK"},
		{"bold colour", "\x1b[1;37mnet\x1b[0m use pool", "net use pool"},
		{"erase line", "\x1b[Kprogress", "progress"},
		{"erase line with param", "done\x1b[2K", "done"},
		{"adjacent sequences", "\x1b[0m\x1b[1m\x1b[Kx", "x"},
		{"cursor movement kept", "\x1b[2Aup", "\x1b[2Aup"},
		{"clear screen kept", "cursor \x1b[2J end", "cursor \x1b[2J end"},
		{"private mode kept", "\x1b[?25mhidden", "\x1b[?25mhidden"},
		{"window title kept", "title \x1b]0;hi\a end", "title \x1b]0;hi\a end"},
		{"stray csi kept", "half \x1b[12; seq", "half \x1b[12; seq"},
		{"lone escape at end", "tail \x1b", "tail \x1b"},
		{"escape before colour", "\x1b\x1b[31mred", "\x1bred"},
		{"control bytes kept", "a\tb\x07c\rd", "a\tb\x07c\rd"},
		{"unicode", "héllo ✓", "héllo ✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"\x1b[31merror\x1b[0m: bad share",
		"plain",
		"\x1b]0;title\x07body",
		"\x1b[1;32mhéllo\x1b[K ✓",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
