package colors

import "testing"

func TestSprintfWrapsWithColorAndReset(t *testing.T) {
	s := GREEN.Sprintf("ok %d", 3)
	want := string(GREEN) + "ok 3" + string(RESET)
	if s != want {
		t.Fatalf("got %q, want %q", s, want)
	}
}

func TestStripANSIRemovesEscapeSequences(t *testing.T) {
	colored := RED.Sprint("fail") + " " + CYAN.Sprintf("%s", "info")
	if got := StripANSI(colored); got != "fail info" {
		t.Fatalf("got %q, want %q", got, "fail info")
	}
}

func TestStripANSILeavesPlainTextAlone(t *testing.T) {
	const plain = "nothing colored here"
	if got := StripANSI(plain); got != plain {
		t.Fatalf("got %q, want %q", got, plain)
	}
}
