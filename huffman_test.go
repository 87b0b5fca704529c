package huffman

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seiflotfy/huffman/internal/prng"
)

// ============================================================================
// Helper Functions
// ============================================================================

func mustEncode(t testing.TB, enc *Encoder, symbols []byte) *Archive {
	t.Helper()
	archive, err := enc.Encode(symbols)
	require.NoError(t, err, "Encode(%q)", truncateForLog(symbols))
	return archive
}

func truncateForLog(b []byte) string {
	if len(b) > 32 {
		return string(b[:32]) + "..."
	}
	return string(b)
}

func roundTrip(t *testing.T, input []byte) *Archive {
	t.Helper()
	archive := mustEncode(t, NewEncoder(), input)
	got, err := Decode(archive.Tree, archive.Bits)
	require.NoError(t, err)
	require.True(t, bytes.Equal(got, input), "round trip mismatch: got %q want %q", truncateForLog(got), truncateForLog(input))
	return archive
}

// ============================================================================
// Round Trip Tests
// ============================================================================

func TestRoundTripBasic(t *testing.T) {
	inputs := []string{
		"a",
		"ab",
		"hello world",
		"abracadabra",
		"mississippi river",
		"user_000001 user_000002 user_000003 admin_001",
		"tab\there\nnewline\x00null",
		"hello世界🚀",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			roundTrip(t, []byte(input))
		})
	}
}

func TestRoundTripAllByteValues(t *testing.T) {
	input := make([]byte, 0, 256*3)
	for i := 0; i < 3; i++ {
		for b := 0; b < 256; b++ {
			input = append(input, byte(b))
		}
	}
	archive := roundTrip(t, input)
	require.Equal(t, 256, archive.Codes.Len())
	// uniform frequencies over 256 symbols give a complete tree
	require.Equal(t, len(input)*8, archive.Bits.Len())
}

func TestRoundTripRandom(t *testing.T) {
	src := prng.New(42)
	for _, alphabet := range []int{2, 3, 7, 16, 100, 256} {
		for _, n := range []int{1, 2, 17, 1000, 10000} {
			roundTrip(t, src.Bytes(n, alphabet))
			roundTrip(t, src.Skewed(n, alphabet))
		}
	}
}

func TestRoundTripLongText(t *testing.T) {
	input := []byte(strings.Repeat("All warfare is based on deception. ", 500))
	archive := roundTrip(t, input)
	require.Greater(t, archive.Stats().Ratio(), 1.5, "English text should compress")
}

// ============================================================================
// Edge Cases
// ============================================================================

func TestEncodeEmptyInput(t *testing.T) {
	archive, err := Encode(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, archive)

	_, err = Encode([]byte{})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestSingleSymbolInput(t *testing.T) {
	for _, n := range []int{1, 2, 100} {
		input := bytes.Repeat([]byte{'z'}, n)
		archive := roundTrip(t, input)

		code, ok := archive.Codes.Lookup('z')
		require.True(t, ok)
		require.Equal(t, uint8(1), code.Len)
		require.Equal(t, n, archive.Bits.Len())
		require.Equal(t, 1, archive.Tree.Leaves())
	}
}

func TestTwoSymbolInput(t *testing.T) {
	input := []byte("AAAAABBB")
	archive := roundTrip(t, input)

	require.Equal(t, 2, archive.Tree.Leaves())
	for _, sym := range []byte("AB") {
		code, ok := archive.Codes.Lookup(sym)
		require.True(t, ok, "symbol %q", sym)
		require.Equal(t, uint8(1), code.Len, "symbol %q", sym)
	}
	require.Equal(t, 8, archive.Bits.Len())
}

func TestTruncatedStream(t *testing.T) {
	// 'c' is the rarest symbol and ends the input, so its code has at least 2 bits
	input := []byte("aaaaaaabbbc")
	archive := mustEncode(t, NewEncoder(), input)

	code, _ := archive.Codes.Lookup('c')
	require.GreaterOrEqual(t, code.Len, uint8(2))

	truncated := archive.Bits.Truncate(archive.Bits.Len() - 1)
	got, err := Decode(archive.Tree, truncated)
	require.ErrorIs(t, err, ErrTruncatedStream)
	require.Nil(t, got)
}

func TestTruncatedAtCodeBoundaryCaughtByArchive(t *testing.T) {
	// the last code is one bit long, so dropping it leaves a valid shorter stream
	input := []byte("bbbbbbbbbba")
	archive := mustEncode(t, NewEncoder(), input)
	last, _ := archive.Codes.Lookup('a')
	archive.Bits = archive.Bits.Truncate(archive.Bits.Len() - int(last.Len))

	_, err := archive.Decode()
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestArchiveDecodeRejectsBadSymbolCount(t *testing.T) {
	for _, symbols := range []int{-1, 0, 1 << 40} {
		archive := mustEncode(t, NewEncoder(), []byte("abracadabra"))
		archive.Symbols = symbols

		var err error
		require.NotPanics(t, func() { _, err = archive.Decode() })
		require.ErrorIs(t, err, ErrCorruptArchive, "Symbols=%d", symbols)
	}
}

func TestArchiveDecodeRejectsMissingTree(t *testing.T) {
	archive := mustEncode(t, NewEncoder(), []byte("abc"))
	archive.Tree = nil
	_, err := archive.Decode()
	require.ErrorIs(t, err, ErrCorruptArchive)
}

func TestDecodeEmptyBits(t *testing.T) {
	archive := mustEncode(t, NewEncoder(), []byte("abc"))
	got, err := Decode(archive.Tree, archive.Bits.Truncate(0))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecodeNilTree(t *testing.T) {
	archive := mustEncode(t, NewEncoder(), []byte("abc"))
	_, err := Decode(nil, archive.Bits)
	require.ErrorIs(t, err, ErrCorruptTree)
	_, err = Decode(&Tree{}, archive.Bits)
	require.ErrorIs(t, err, ErrCorruptTree)
}

// ============================================================================
// Determinism
// ============================================================================

func TestDeterminism(t *testing.T) {
	input := prng.New(7).Skewed(5000, 40)

	a := mustEncode(t, NewEncoder(), input)
	b := mustEncode(t, NewEncoder(), input)

	rawA, err := a.Tree.MarshalBinary()
	require.NoError(t, err)
	rawB, err := b.Tree.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, rawA, rawB, "trees differ between runs")
	require.Equal(t, *a.Codes, *b.Codes, "code tables differ between runs")
	require.True(t, a.Bits.Equal(b.Bits), "bit sequences differ between runs")
}

func TestSymbolOrderDoesNotChangeTree(t *testing.T) {
	src := prng.New(11)
	input := src.Skewed(4000, 30)
	shuffled := append([]byte(nil), input...)
	src.Shuffle(shuffled)
	require.NotEqual(t, input, shuffled)

	a := mustEncode(t, NewEncoder(), input)
	b := mustEncode(t, NewEncoder(), shuffled)

	rawA, err := a.Tree.MarshalBinary()
	require.NoError(t, err)
	rawB, err := b.Tree.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, rawA, rawB)
	require.Equal(t, a.Bits.Len(), b.Bits.Len())

	got, err := b.Decode()
	require.NoError(t, err)
	require.Equal(t, shuffled, got)
}

// ============================================================================
// Stats
// ============================================================================

func TestStats(t *testing.T) {
	input := []byte("AAAAABBB")
	stats := mustEncode(t, NewEncoder(), input).Stats()

	require.Equal(t, Stats{Symbols: 8, OriginalBits: 64, EncodedBits: 8, Distinct: 2}, stats)
	require.Equal(t, 8.0, stats.Ratio())
	require.Equal(t, 1.0, stats.BitsPerSymbol())
	require.Zero(t, Stats{}.Ratio())
	require.Zero(t, Stats{}.BitsPerSymbol())
}

func TestResolvePayloadCodec(t *testing.T) {
	tests := []struct {
		in   PayloadCodec
		want PayloadCodec
	}{
		{PayloadAuto, PayloadAuto},
		{PayloadRaw, PayloadRaw},
		{PayloadFlate, PayloadFlate},
		{PayloadZstd, PayloadZstd},
		{PayloadCodec(99), PayloadAuto},
	}
	for _, tc := range tests {
		got := resolvePayloadCodec(newConfig([]Option{WithPayloadCodec(tc.in)}))
		require.Equal(t, tc.want, got, "resolvePayloadCodec(%d)", tc.in)
	}
}

func TestResolveConcurrency(t *testing.T) {
	require.Equal(t, 3, resolveConcurrency(newConfig([]Option{WithConcurrency(3)})))
	require.GreaterOrEqual(t, resolveConcurrency(newConfig(nil)), 1)
}
