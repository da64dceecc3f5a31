package colors

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Enabled controls whether the Print family emits escape codes at all. It
// defaults to whether stdout is a terminal (golang.org/x/term.IsTerminal),
// so driver debug output degrades to plain text automatically when piped
// into a file or another process: a -dump-ir redirected to disk should
// not end up full of escape bytes.
var Enabled = term.IsTerminal(int(os.Stdout.Fd()))

func (c COLOR) wrap(s string) string {
	if !Enabled {
		return s
	}
	return string(c) + s + string(RESET)
}

// Printf writes a colored, formatted line to stdout.
func (c COLOR) Printf(format string, args ...any) {
	fmt.Print(c.wrap(fmt.Sprintf(format, args...)))
}

func (c COLOR) Println(args ...any) {
	fmt.Println(c.wrap(fmt.Sprint(args...)))
}

func (c COLOR) Print(args ...any) {
	fmt.Print(c.wrap(fmt.Sprint(args...)))
}

// Fprint methods write to an arbitrary writer, bypassing the stdout-TTY
// gate: callers that already know their destination is a terminal (or
// that explicitly want raw escape codes, e.g. writing to another color
// wrapping reader) use these directly.
func (c COLOR) Fprintf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, string(c)+format+string(RESET), args...)
}

func (c COLOR) Fprintln(w io.Writer, args ...any) {
	fmt.Fprint(w, string(c))
	fmt.Fprintln(w, args...)
	fmt.Fprint(w, string(RESET))
}

func (c COLOR) Fprint(w io.Writer, args ...any) {
	fmt.Fprint(w, string(c))
	fmt.Fprint(w, args...)
	fmt.Fprint(w, string(RESET))
}

func (c COLOR) Sprintf(format string, args ...any) string {
	return string(c) + fmt.Sprintf(format, args...) + string(RESET)
}

func (c COLOR) Sprintln(args ...any) string {
	return string(c) + fmt.Sprintln(args...) + string(RESET)
}

func (c COLOR) Sprint(args ...any) string {
	return string(c) + fmt.Sprint(args...) + string(RESET)
}

// PrintWithColor is a free-function equivalent for callers that hold the
// color as a value rather than a literal at the call site.
func PrintWithColor(color COLOR, args ...any) {
	color.Print(args...)
}

func FprintWithColor(w io.Writer, color COLOR, args ...any) {
	color.Fprint(w, args...)
}

func SprintWithColor(color COLOR, args ...any) string {
	return color.Sprint(args...)
}

// StripANSI removes ANSI color codes from a string, so a line that
// originated from a colored print can be embedded in machine-readable
// output without escape bytes leaking through.
func StripANSI(s string) string {
	result := ""
	inEscape := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			inEscape = true
			i++
			continue
		}
		if inEscape {
			if (s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z') {
				inEscape = false
			}
			continue
		}
		result += string(s[i])
	}
	return result
}
