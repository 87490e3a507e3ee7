package source

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmmannChristian/randqa/internal/randomness"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"lcg", "XorShift", " osrandom "} {
		src, err := New(name, 7)
		require.NoError(t, err, name)
		assert.NotEmpty(t, src.Name())
	}

	_, err := New("mersenne", 1)
	require.ErrorIs(t, err, ErrUnknownSource)
	assert.Contains(t, err.Error(), "lcg, osrandom, xorshift")

	assert.Equal(t, []string{NameLCG, NameOSRandom, NameXorShift}, Names())
}

func TestLCG_AlternatingLowBit(t *testing.T) {
	buf := make([]byte, 4)

	n, err := NewLCG(DefaultSeed).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	// An even seed makes the first state odd, so the stream is 1,0,1,0...
	assert.Equal(t, []byte{0x55, 0x55, 0x55, 0x55}, buf)

	_, err = NewLCG(7).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA}, buf)

	g := NewLCG(0)
	assert.Equal(t, byte(1), g.NextBit())
	assert.Equal(t, uint32(lcgIncrement), g.state)
	assert.True(t, g.Deterministic())
}

func TestXorShift32(t *testing.T) {
	zero := NewXorShift32(0)
	def := NewXorShift32(xorShiftDefaultSeed)
	assert.Equal(t, def.Uint32(), zero.Uint32(), "zero seed is replaced")

	ref := NewXorShift32(99)
	words := []uint32{ref.Uint32(), ref.Uint32()}
	want := make([]byte, 8)
	binary.LittleEndian.PutUint32(want[0:], words[0])
	binary.LittleEndian.PutUint32(want[4:], words[1])

	single := make([]byte, 8)
	_, err := NewXorShift32(99).Read(single)
	require.NoError(t, err)
	assert.Equal(t, want, single)

	split := NewXorShift32(99)
	got := make([]byte, 0, 8)
	for _, size := range []int{3, 1, 4} {
		chunk := make([]byte, size)
		_, err := split.Read(chunk)
		require.NoError(t, err)
		got = append(got, chunk...)
	}
	assert.Equal(t, want, got)
}

func TestOSRandom(t *testing.T) {
	src := NewOSRandom()
	assert.False(t, src.Deterministic())
	assert.Equal(t, NameOSRandom, src.Name())

	a := make([]byte, 64)
	b := make([]byte, 64)
	_, err := src.Read(a)
	require.NoError(t, err)
	_, err = src.Read(b)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBits(t *testing.T) {
	seq, err := Bits(NewLCG(DefaultSeed), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 1, 0, 1, 0, 1, 0, 1, 0}, seq.Bits())

	_, err = Bits(NewLCG(1), 0)
	assert.ErrorIs(t, err, randomness.ErrEmptySequence)

	_, err = Bits(bytes.NewReader([]byte{0xff}), 16)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestLCG_EndToEndRejected(t *testing.T) {
	seq, err := Bits(NewLCG(DefaultSeed), randomness.RecommendedBits)
	require.NoError(t, err)

	report, err := randomness.NewAnalyzer().Analyze(seq, randomness.DefaultParams())
	require.NoError(t, err)

	runs, ok := report.Raw.Get(randomness.TestRuns)
	require.True(t, ok)
	assert.Equal(t, 0.0, runs)

	apen, ok := report.Raw.Get(randomness.TestApproxEntropy)
	require.True(t, ok)
	assert.Equal(t, 0.0, apen)

	mono, _ := report.Raw.Get(randomness.TestMonoBit)
	assert.Equal(t, 1.0, mono)

	assert.False(t, report.Decision.OverallPass)
	assert.False(t, report.Decision.OverallPassRaw)
	assert.Empty(t, report.Warnings)
}
