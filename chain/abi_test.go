package chain

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
)

// Pins the keccak selector derivation against the well-known ERC-20
// transfer selector.
func TestSelectorKnownVector(t *testing.T) {
	sel := Selector("transfer(address,uint256)")
	if got := hex.EncodeToString(sel[:]); got != "a9059cbb" {
		t.Fatalf("selector = %s, want a9059cbb", got)
	}
}

func TestCallDataLayout(t *testing.T) {
	worker, err := encodeAddress("0x00000000000000000000000000000000000000aB")
	if err != nil {
		t.Fatalf("encodeAddress error: %v", err)
	}
	data := callData(Selector("fund(uint256,address)"), encodeUint256(big.NewInt(7)), worker)

	if !strings.HasPrefix(data, "0x") {
		t.Fatalf("call data missing 0x prefix: %s", data)
	}
	raw, err := hex.DecodeString(data[2:])
	if err != nil {
		t.Fatalf("call data is not hex: %v", err)
	}
	if len(raw) != 4+2*wordSize {
		t.Fatalf("call data length = %d, want %d", len(raw), 4+2*wordSize)
	}
	if raw[4+wordSize-1] != 7 {
		t.Fatalf("task id word = %x, want trailing 0x07", raw[4:4+wordSize])
	}
	if raw[len(raw)-1] != 0xab {
		t.Fatalf("worker word = %x, want trailing 0xab", raw[4+wordSize:])
	}
}

func TestEncodeAddressRejectsBadInput(t *testing.T) {
	for _, addr := range []string{"", "0x1234", "0xzz0000000000000000000000000000000000zzzz"} {
		if _, err := encodeAddress(addr); err == nil {
			t.Fatalf("encodeAddress(%q) should have failed", addr)
		}
	}
}

func TestDecodeEscrowTuple(t *testing.T) {
	poster := "0x1111111111111111111111111111111111111111"
	worker := "0x2222222222222222222222222222222222222222"
	amount := big.NewInt(50_000_000)

	var buf []byte
	p, _ := encodeAddress(poster)
	w, _ := encodeAddress(worker)
	a := encodeUint256(amount)
	tru := encodeUint256(big.NewInt(1))
	fls := encodeUint256(big.NewInt(0))
	for _, word := range [][wordSize]byte{p, w, a, tru, fls, fls} {
		buf = append(buf, word[:]...)
	}

	tuple, err := decodeEscrowTuple("0x" + hex.EncodeToString(buf))
	if err != nil {
		t.Fatalf("decodeEscrowTuple error: %v", err)
	}
	if tuple.poster != poster || tuple.worker != worker {
		t.Fatalf("decoded addresses %s / %s", tuple.poster, tuple.worker)
	}
	if tuple.amount.Cmp(amount) != 0 {
		t.Fatalf("decoded amount %s, want %s", tuple.amount, amount)
	}
	if !tuple.funded || tuple.released || tuple.cancelled {
		t.Fatalf("decoded flags %+v", tuple)
	}
}

func TestDecodeEscrowTupleTooShort(t *testing.T) {
	if _, err := decodeEscrowTuple("0x00"); err == nil {
		t.Fatal("short tuple should have failed")
	}
}
