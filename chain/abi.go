package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// The contract surface this client needs is three fixed entry points, so
// the ABI handling is a small hand-rolled codec instead of a generated
// binding: a 4-byte keccak selector followed by 32-byte words.

const wordSize = 32

// Selector returns the 4-byte function selector for a canonical signature
// such as "fund(uint256,address)".
func Selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil)[:4])
	return sel
}

func encodeUint256(v *big.Int) [wordSize]byte {
	var word [wordSize]byte
	v.FillBytes(word[:])
	return word
}

func encodeAddress(addr string) ([wordSize]byte, error) {
	var word [wordSize]byte
	raw, err := parseAddress(addr)
	if err != nil {
		return word, err
	}
	copy(word[wordSize-20:], raw)
	return word, nil
}

// parseAddress decodes a 0x-prefixed 20-byte hex address.
func parseAddress(addr string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(addr), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("address %q is not hex: %w", addr, err)
	}
	if len(raw) != 20 {
		return nil, fmt.Errorf("address %q is %d bytes, want 20", addr, len(raw))
	}
	return raw, nil
}

// callData assembles selector+words into the 0x-prefixed hex payload the
// JSON-RPC node expects.
func callData(sel [4]byte, words ...[wordSize]byte) string {
	buf := make([]byte, 0, 4+len(words)*wordSize)
	buf = append(buf, sel[:]...)
	for _, w := range words {
		buf = append(buf, w[:]...)
	}
	return "0x" + hex.EncodeToString(buf)
}

// escrowTuple is the decoded return of the contract's read accessor:
// (address poster, address worker, uint256 amount, bool funded,
// bool released, bool cancelled).
type escrowTuple struct {
	poster    string
	worker    string
	amount    *big.Int
	funded    bool
	released  bool
	cancelled bool
}

func decodeEscrowTuple(data string) (escrowTuple, error) {
	var out escrowTuple
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(data), "0x"))
	if err != nil {
		return out, fmt.Errorf("escrow return is not hex: %w", err)
	}
	if len(raw) < 6*wordSize {
		return out, fmt.Errorf("escrow return is %d bytes, want %d", len(raw), 6*wordSize)
	}
	word := func(i int) []byte { return raw[i*wordSize : (i+1)*wordSize] }

	out.poster = wordToAddress(word(0))
	out.worker = wordToAddress(word(1))
	out.amount = new(big.Int).SetBytes(word(2))
	out.funded = wordToBool(word(3))
	out.released = wordToBool(word(4))
	out.cancelled = wordToBool(word(5))
	return out, nil
}

func wordToAddress(w []byte) string {
	return "0x" + hex.EncodeToString(w[wordSize-20:])
}

func wordToBool(w []byte) bool {
	for _, b := range w {
		if b != 0 {
			return true
		}
	}
	return false
}
