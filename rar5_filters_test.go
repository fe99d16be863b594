package rarstream

import (
	"bytes"
	"testing"
)

func TestApplyDeltaFilterSingleChannel(t *testing.T) {
	in := []byte{5, 3, 2, 10}
	out := applyDeltaFilter(in, 1)
	want := []byte{5, 8, 10, 20}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestApplyDeltaFilterTwoChannels(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6}
	out := applyDeltaFilter(in, 2)
	want := []byte{1, 2, 4, 6, 9, 12}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestApplyDeltaFilterNoop(t *testing.T) {
	if got := applyDeltaFilter(nil, 1); got != nil && len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
	in := []byte{1, 2, 3}
	if got := applyDeltaFilter(in, 0); !bytes.Equal(got, in) {
		t.Fatalf("got %v, want unchanged %v", got, in)
	}
}

func TestApplyE8FilterRewritesTarget(t *testing.T) {
	in := []byte{0xE8, 10, 0, 0, 0}
	out := applyE8Filter(in, 0, false)
	want := []byte{0xE8, 15, 0, 0, 0}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestApplyE8FilterIgnoresE9WhenDisabled(t *testing.T) {
	in := []byte{0xE9, 10, 0, 0, 0}
	out := applyE8Filter(in, 0, false)
	if !bytes.Equal(out, in) {
		t.Fatalf("E9 byte rewritten though includeE9=false: got %v", out)
	}
}

func TestApplyE8E9FilterRewritesBoth(t *testing.T) {
	in := []byte{0xE8, 10, 0, 0, 0, 0xE9, 10, 0, 0, 0}
	out := applyE8Filter(in, 0, true)
	want := []byte{0xE8, 15, 0, 0, 0, 0xE9, 20, 0, 0, 0}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestApplyARMFilterRewritesBranchTarget(t *testing.T) {
	in := []byte{0x10, 0x20, 0x30, 0x00, 0x02, 0x00, 0x00, 0xEB}
	out := applyARMFilter(in, 0)
	want := []byte{0x10, 0x20, 0x30, 0x00, 0x03, 0x00, 0x00, 0xEB}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestApplyARMFilterSkipsNonBranchWords(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03, 0x04}
	out := applyARMFilter(in, 0)
	if !bytes.Equal(out, in) {
		t.Fatalf("word without 0xEB opcode byte was modified: got %v", out)
	}
}
