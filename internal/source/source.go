// Package source provides bit generators used to exercise the analysis
// engine: a deliberately weak linear congruential generator, Marsaglia's
// xorshift32 and the operating system CSPRNG. Every generator is an
// io.Reader; bytes are consumed as a single stream and unpacked LSB-first.
package source

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/AmmannChristian/randqa/internal/randomness"
)

// Generator names accepted by New.
const (
	NameLCG      = "lcg"
	NameXorShift = "xorshift"
	NameOSRandom = "osrandom"
)

// DefaultSeed is the seed used by the CLI and HTTP API when none is given.
const DefaultSeed = 42

// ErrUnknownSource is returned by New for an unsupported generator name.
var ErrUnknownSource = errors.New("unknown source")

// Source is a named byte stream.
type Source interface {
	io.Reader
	Name() string
	// Deterministic reports whether the stream is reproducible from its seed.
	Deterministic() bool
}

var constructors = map[string]func(seed uint64) Source{
	NameLCG:      func(seed uint64) Source { return NewLCG(uint32(seed)) },
	NameXorShift: func(seed uint64) Source { return NewXorShift32(uint32(seed)) },
	NameOSRandom: func(uint64) Source { return NewOSRandom() },
}

// Names returns the supported generator names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the generator called name seeded with seed. The seed is
// ignored for osrandom.
func New(name string, seed uint64) (Source, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownSource, name, strings.Join(Names(), ", "))
	}
	return ctor(seed), nil
}

// Bits reads ceil(n/8) bytes from r and unpacks them LSB-first into a
// sequence of exactly n bits.
func Bits(r io.Reader, n int) (randomness.Sequence, error) {
	if n < 1 {
		return randomness.Sequence{}, fmt.Errorf("bit count must be positive, got %d: %w", n, randomness.ErrEmptySequence)
	}

	buf := make([]byte, (n+7)/8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return randomness.Sequence{}, fmt.Errorf("read %d bytes: %w", len(buf), err)
	}

	seq, err := randomness.FromBytes(buf, randomness.LSBFirst)
	if err != nil {
		return randomness.Sequence{}, err
	}
	return seq.Prefix(n)
}

// LCG is the linear congruential generator x' = (1664525x + 1013904223) mod
// 2^32 emitting the least significant state bit per output bit. Because both
// constants are odd, that bit simply alternates, which makes the stream a
// reference failure case.
type LCG struct {
	state uint32
}

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

// NewLCG returns an LCG seeded with seed.
func NewLCG(seed uint32) *LCG {
	return &LCG{state: seed}
}

// NextBit advances the state and returns its low bit.
func (g *LCG) NextBit() byte {
	g.state = g.state*lcgMultiplier + lcgIncrement
	return byte(g.state & 1)
}

// Read fills p with bytes assembled from eight NextBit calls each, the first
// bit in position 0.
func (g *LCG) Read(p []byte) (int, error) {
	for i := range p {
		var b byte
		for j := 0; j < 8; j++ {
			b |= g.NextBit() << j
		}
		p[i] = b
	}
	return len(p), nil
}

func (g *LCG) Name() string        { return NameLCG }
func (g *LCG) Deterministic() bool { return true }

// XorShift32 is Marsaglia's 32-bit xorshift generator with shifts 13, 17, 5.
type XorShift32 struct {
	state uint32
	word  uint32
	used  int // bytes of word already emitted
}

// xorShiftDefaultSeed replaces a zero seed, which would lock the generator
// at zero.
const xorShiftDefaultSeed = 2463534242

// NewXorShift32 returns a generator seeded with seed.
func NewXorShift32(seed uint32) *XorShift32 {
	if seed == 0 {
		seed = xorShiftDefaultSeed
	}
	return &XorShift32{state: seed, used: 4}
}

// Uint32 advances the generator.
func (g *XorShift32) Uint32() uint32 {
	x := g.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	g.state = x
	return x
}

// Read emits each 32-bit output little-endian. A stream split across several
// Read calls yields the same bytes as a single call.
func (g *XorShift32) Read(p []byte) (int, error) {
	for i := range p {
		if g.used == 4 {
			g.word = g.Uint32()
			g.used = 0
		}
		p[i] = byte(g.word >> (8 * g.used))
		g.used++
	}
	return len(p), nil
}

func (g *XorShift32) Name() string        { return NameXorShift }
func (g *XorShift32) Deterministic() bool { return true }

// OSRandom reads from the operating system CSPRNG.
type OSRandom struct {
	r io.Reader
}

// NewOSRandom returns a source backed by crypto/rand.
func NewOSRandom() *OSRandom {
	return &OSRandom{r: rand.Reader}
}

func (o *OSRandom) Read(p []byte) (int, error) {
	return io.ReadFull(o.r, p)
}

func (o *OSRandom) Name() string        { return NameOSRandom }
func (o *OSRandom) Deterministic() bool { return false }
