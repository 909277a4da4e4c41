package tg

import (
	"errors"
	"testing"

	"github.com/pvzzle/txrecorder/internal/coordinator"
)

func TestValidators(t *testing.T) {
	if !IsEthAddress("0x" + repeat("b", 40)) {
		t.Fatalf("expected valid address")
	}
	if IsEthAddress("0x" + repeat("b", 39)) {
		t.Fatalf("expected invalid address")
	}
	if !IsEthAddress("  " + repeat("C", 40) + " ") {
		t.Fatalf("expected valid address without prefix")
	}
}

func TestAdvance_FullForm(t *testing.T) {
	addr := "0x" + repeat("b", 40)

	s, v, err := advance(StateAwaitRecipient, addr)
	if err != nil || s.field != coordinator.FieldRecipient || s.next != StateAwaitAmount || v != addr {
		t.Fatalf("recipient step: %+v %q %v", s, v, err)
	}

	s, v, err = advance(StateAwaitAmount, "0,5")
	if err != nil || s.field != coordinator.FieldAmount || s.next != StateAwaitKeyword || v != "0,5" {
		t.Fatalf("amount step: %+v %q %v", s, v, err)
	}

	s, v, err = advance(StateAwaitKeyword, "-")
	if err != nil || s.field != coordinator.FieldKeyword || v != "" {
		t.Fatalf("keyword skip: %+v %q %v", s, v, err)
	}

	s, v, err = advance(StateAwaitMessage, "  gm  ")
	if err != nil || s.field != coordinator.FieldMessage || s.next != StateIdle || v != "gm" {
		t.Fatalf("message step: %+v %q %v", s, v, err)
	}
}

func TestAdvance_Rejects(t *testing.T) {
	if _, _, err := advance(StateAwaitRecipient, "0x123"); !errors.Is(err, errBadAddr) {
		t.Fatalf("expected bad address, got %v", err)
	}
	if _, _, err := advance(StateAwaitAmount, "-1"); !errors.Is(err, errBadAmount) {
		t.Fatalf("expected bad amount, got %v", err)
	}
	if _, _, err := advance(StateIdle, "hello"); !errors.Is(err, errNotInForm) {
		t.Fatalf("expected not in form, got %v", err)
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
