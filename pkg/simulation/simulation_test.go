package simulation

import (
	"strings"
	"testing"
	"time"
)

func TestParseStripsPipesAndIgnoresOtherLines(t *testing.T) {
	input := "# comment\n\ntelegram=|1020|30|\nnot a telegram line\n"
	lines, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}
	if string(lines[0].Frame) != "\x10\x20\x30" {
		t.Fatalf("Frame = %X", lines[0].Frame)
	}
	if lines[0].Delay != 0 {
		t.Fatalf("Delay = %v, want 0", lines[0].Delay)
	}
}

func TestParseDelaySuffix(t *testing.T) {
	lines, err := Parse(strings.NewReader("telegram=|1020|+5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0].Delay != 5*time.Second {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestParseInvalidHexErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("telegram=ZZZZ\n"))
	if err == nil {
		t.Fatal("expected an error for invalid hex")
	}
}

func TestPlayerReplaysInOrderThenCloses(t *testing.T) {
	lines := []Line{{Frame: []byte{0x01}}, {Frame: []byte{0x02}}}
	p := NewPlayer(lines)
	p.Start()

	var got [][]byte
	for f := range p.Frames {
		got = append(got, f)
	}
	if len(got) != 2 || got[0][0] != 0x01 || got[1][0] != 0x02 {
		t.Fatalf("got = %v", got)
	}
}

func TestPlayerStopInterruptsPlayback(t *testing.T) {
	lines := []Line{{Frame: []byte{0x01}, Delay: time.Hour}}
	p := NewPlayer(lines)
	p.Start()
	p.Stop()

	select {
	case _, ok := <-p.Frames:
		if ok {
			t.Fatal("expected Frames to close without emitting the delayed frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Frames to close after Stop")
	}
}
