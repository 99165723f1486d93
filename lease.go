package prerotate

import (
	"github.com/pkg/errors"
)

// Token is proof of a checked-out slot: a frame slot of the in-flight ring or
// the one-shot transfer command buffer. It stops being valid once released;
// presenting it again fails with ErrStaleToken.
type Token struct {
	Slot       int
	Generation uint64
}

// leaseTable tracks which slots are checked out and under which generation.
// It is driven by the single render thread and does no locking.
type leaseTable struct {
	generation []uint64
	held       []bool
}

func newLeaseTable(slots int) *leaseTable {
	return &leaseTable{
		generation: make([]uint64, slots),
		held:       make([]bool, slots),
	}
}

func (t *leaseTable) acquire(slot int) (Token, error) {
	if slot < 0 || slot >= len(t.held) {
		return Token{}, errors.Errorf("slot %d out of range [0,%d)", slot, len(t.held))
	}
	if t.held[slot] {
		return Token{}, errors.Wrapf(ErrSlotBusy, "slot %d", slot)
	}
	t.generation[slot]++
	t.held[slot] = true
	return Token{Slot: slot, Generation: t.generation[slot]}, nil
}

func (t *leaseTable) valid(tok Token) bool {
	return tok.Slot >= 0 && tok.Slot < len(t.held) &&
		t.held[tok.Slot] && t.generation[tok.Slot] == tok.Generation
}

// check returns ErrStaleToken when tok no longer names a live checkout.
func (t *leaseTable) check(tok Token) error {
	if !t.valid(tok) {
		return errors.Wrapf(ErrStaleToken, "slot %d generation %d", tok.Slot, tok.Generation)
	}
	return nil
}

func (t *leaseTable) release(tok Token) error {
	if err := t.check(tok); err != nil {
		return err
	}
	t.held[tok.Slot] = false
	return nil
}
