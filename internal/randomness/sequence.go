package randomness

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// BitOrder selects how bytes are unpacked into bits.
type BitOrder int

const (
	// LSBFirst emits bit 0 of each byte first. This is the packing used by
	// the bundled PRNG sources.
	LSBFirst BitOrder = iota
	// MSBFirst emits bit 7 of each byte first.
	MSBFirst
)

// String returns the string representation of BitOrder.
func (o BitOrder) String() string {
	switch o {
	case LSBFirst:
		return "lsb"
	case MSBFirst:
		return "msb"
	default:
		return "unknown"
	}
}

// ParseBitOrder converts "lsb" or "msb" (case-insensitive) into a BitOrder.
// The empty string selects LSBFirst.
func ParseBitOrder(s string) (BitOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lsb", "lsb-first", "little":
		return LSBFirst, nil
	case "msb", "msb-first", "big":
		return MSBFirst, nil
	default:
		return LSBFirst, newError("ParseBitOrder", ErrInvalidParameter, fmt.Sprintf("unknown bit order %q", s))
	}
}

// Sequence is an immutable, non-empty sequence of bits. The zero value is an
// empty sequence and is rejected by every test with ErrEmptySequence.
type Sequence struct {
	bits []byte // one bit per element, 0 or 1
	ones int
}

// NewSequence copies bits into a new Sequence. Every element must be 0 or 1.
func NewSequence(bits []byte) (Sequence, error) {
	if len(bits) == 0 {
		return Sequence{}, newError("NewSequence", ErrEmptySequence, "")
	}

	cp := make([]byte, len(bits))
	ones := 0
	for i, b := range bits {
		if b > 1 {
			return Sequence{}, newError("NewSequence", ErrNonBinaryValue, fmt.Sprintf("value %d at index %d", b, i))
		}
		cp[i] = b
		ones += int(b)
	}

	return Sequence{bits: cp, ones: ones}, nil
}

// FromBytes unpacks raw bytes into a Sequence of len(raw)*8 bits.
func FromBytes(raw []byte, order BitOrder) (Sequence, error) {
	if len(raw) == 0 {
		return Sequence{}, newError("FromBytes", ErrEmptySequence, "")
	}

	bits := make([]byte, 0, len(raw)*8)
	ones := 0
	for _, b := range raw {
		for j := 0; j < 8; j++ {
			var bit byte
			if order == MSBFirst {
				bit = (b >> uint(7-j)) & 1
			} else {
				bit = (b >> uint(j)) & 1
			}
			bits = append(bits, bit)
			ones += int(bit)
		}
	}

	return Sequence{bits: bits, ones: ones}, nil
}

// FromHex decodes a hex blob and unpacks it like FromBytes. An optional 0x
// prefix and any whitespace are ignored.
func FromHex(s string, order BitOrder) (Sequence, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Sequence{}, newError("FromHex", ErrInvalidInput, err.Error())
	}
	return FromBytes(raw, order)
}

// ParseText reads ASCII '0' and '1' characters, ignoring whitespace.
func ParseText(s string) (Sequence, error) {
	bits := make([]byte, 0, len(s))
	for i, r := range s {
		switch {
		case r == '0':
			bits = append(bits, 0)
		case r == '1':
			bits = append(bits, 1)
		case unicode.IsSpace(r):
		default:
			return Sequence{}, newError("ParseText", ErrNonBinaryValue, fmt.Sprintf("character %q at offset %d", r, i))
		}
	}
	return NewSequence(bits)
}

// Len returns the number of bits.
func (s Sequence) Len() int {
	return len(s.bits)
}

// Ones returns the number of bits set to 1.
func (s Sequence) Ones() int {
	return s.ones
}

// Bit returns the bit at index i. It panics if i is out of range.
func (s Sequence) Bit(i int) byte {
	return s.bits[i]
}

// Bits returns a copy of the underlying bits.
func (s Sequence) Bits() []byte {
	cp := make([]byte, len(s.bits))
	copy(cp, s.bits)
	return cp
}

// Prefix returns the first n bits as a new Sequence. If n is not smaller
// than Len the sequence itself is returned.
func (s Sequence) Prefix(n int) (Sequence, error) {
	if n < 1 {
		return Sequence{}, newError("Prefix", ErrEmptySequence, fmt.Sprintf("requested %d bits", n))
	}
	if n >= len(s.bits) {
		return s, nil
	}

	ones := 0
	for _, b := range s.bits[:n] {
		ones += int(b)
	}
	// Full slice expression keeps the prefix from growing into the original.
	return Sequence{bits: s.bits[:n:n], ones: ones}, nil
}

// Pack packs the bits into bytes, zero-padding the final partial byte.
func (s Sequence) Pack(order BitOrder) []byte {
	out := make([]byte, (len(s.bits)+7)/8)
	for i, b := range s.bits {
		if b == 0 {
			continue
		}
		if order == MSBFirst {
			out[i/8] |= 1 << uint(7-i%8)
		} else {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
