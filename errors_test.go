package rarstream

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelAliases(t *testing.T) {
	if !errors.Is(ErrBadHeaderCRC, ErrHeaderCRCMismatch) {
		t.Fatal("ErrBadHeaderCRC should alias ErrHeaderCRCMismatch")
	}
	if !errors.Is(ErrNoSig, ErrNotARarArchive) {
		t.Fatal("ErrNoSig should alias ErrNotARarArchive")
	}
}

func TestSentinelWrapping(t *testing.T) {
	wrapped := fmt.Errorf("rarstream: volume %q: %w", "a.rar", ErrVolumeMissing)
	if !errors.Is(wrapped, ErrVolumeMissing) {
		t.Fatal("wrapped error should satisfy errors.Is against ErrVolumeMissing")
	}
}
