package huffman

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seiflotfy/huffman/internal/prng"
)

// optimalCost computes the minimum weighted path length for weights by
// repeatedly merging the two smallest values of a sorted slice.
func optimalCost(freq FrequencyTable) int {
	weights := make([]int, 0, len(freq))
	for _, sym := range freq.Symbols() {
		weights = append(weights, freq[sym])
	}
	if len(weights) == 1 {
		return weights[0]
	}
	cost := 0
	for len(weights) > 1 {
		sort.Ints(weights)
		merged := weights[0] + weights[1]
		cost += merged
		weights = append(weights[2:], merged)
	}
	return cost
}

func buildCodes(t *testing.T, input []byte) (FrequencyTable, *CodeTable) {
	t.Helper()
	freq := CountFrequencies(input)
	tree, err := BuildTree(freq)
	require.NoError(t, err)
	codes, err := NewCodeTable(tree)
	require.NoError(t, err)
	return freq, codes
}

// ============================================================================
// Code Properties
// ============================================================================

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{Code{}, ""},
		{Code{Bits: 0, Len: 1}, "0"},
		{Code{Bits: 1, Len: 1}, "1"},
		{Code{Bits: 0b0110, Len: 4}, "0110"},
		{Code{Bits: 1 << 63, Len: 64}, "1" + strings.Repeat("0", 63)},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, tc.code.String(), "%+v", tc.code)
	}
}

func TestCodeHasPrefix(t *testing.T) {
	c := Code{Bits: 0b1011, Len: 4}
	require.True(t, c.HasPrefix(Code{Bits: 0b10, Len: 2}))
	require.True(t, c.HasPrefix(c), "a code prefixes itself")
	require.False(t, c.HasPrefix(Code{Bits: 0b11, Len: 2}))
	require.False(t, c.HasPrefix(Code{Bits: 0b10110, Len: 5}), "a longer code cannot be a prefix")
}

func TestCodeTablePrefixFree(t *testing.T) {
	src := prng.New(3)
	for _, alphabet := range []int{2, 5, 30, 256} {
		_, codes := buildCodes(t, src.Skewed(3000, alphabet))
		syms := codes.Symbols()
		for i, a := range syms {
			ca, _ := codes.Lookup(a)
			require.NotZero(t, ca.Len, "symbol %q has an empty code", a)
			for _, b := range syms[i+1:] {
				cb, _ := codes.Lookup(b)
				require.False(t, ca.HasPrefix(cb) || cb.HasPrefix(ca),
					"codes %s (%q) and %s (%q) are not prefix-free", ca, a, cb, b)
			}
		}
	}
}

func TestCodeTableKraftEquality(t *testing.T) {
	src := prng.New(11)
	for _, alphabet := range []int{2, 3, 17, 200} {
		_, codes := buildCodes(t, src.Skewed(5000, alphabet))
		maxLen := codes.MaxLen()
		require.Less(t, maxLen, 63, "test input produced an unexpectedly deep tree")

		var sum uint64
		for _, sym := range codes.Symbols() {
			c, _ := codes.Lookup(sym)
			sum += 1 << uint(maxLen-int(c.Len))
		}
		require.Equal(t, uint64(1)<<uint(maxLen), sum, "alphabet %d", alphabet)
	}
}

func TestCodeTableOptimal(t *testing.T) {
	src := prng.New(5)
	inputs := [][]byte{
		[]byte("AAAAABBB"),
		[]byte("abracadabra"),
		[]byte("this is an example of a huffman tree"),
		src.Bytes(2000, 256),
		src.Skewed(2000, 50),
	}
	for _, input := range inputs {
		freq, codes := buildCodes(t, input)
		got, err := codes.EncodedLen(freq)
		require.NoError(t, err)
		require.Equal(t, optimalCost(freq), got, "%q", truncateForLog(input))
	}
}

func TestCodeTableLookupMissing(t *testing.T) {
	_, codes := buildCodes(t, []byte("abc"))
	c, ok := codes.Lookup('z')
	require.False(t, ok)
	require.Zero(t, c.Len)

	_, err := codes.EncodedLen(FrequencyTable{'z': 1})
	require.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestCodeTableAccessors(t *testing.T) {
	_, codes := buildCodes(t, []byte("aabbc"))
	require.Equal(t, 3, codes.Len())
	require.Equal(t, "abc", string(codes.Symbols()))
	require.Equal(t, 2, codes.MaxLen())
}

// ============================================================================
// Depth Limits
// ============================================================================

// fibonacciTable assigns Fibonacci counts to n symbols, which forces a
// degenerate tree of depth n-1.
func fibonacciTable(n int) FrequencyTable {
	freq := make(FrequencyTable, n)
	a, b := 1, 1
	for i := 0; i < n; i++ {
		freq[byte(i)] = a
		a, b = b, a+b
	}
	return freq
}

func TestCodeTableMaxDepth(t *testing.T) {
	tree, err := BuildTree(fibonacciTable(65))
	require.NoError(t, err)
	require.Equal(t, 64, tree.Depth())

	codes, err := NewCodeTable(tree)
	require.NoError(t, err, "depth 64 fits")
	require.Equal(t, MaxCodeLen, codes.MaxLen())

	// the longest code still round trips
	codec, err := NewCodec(tree)
	require.NoError(t, err)
	input := []byte{0, 1, 64, 63, 0}
	bits, err := codec.Encode(input)
	require.NoError(t, err)
	got, err := codec.Decode(bits)
	require.NoError(t, err)
	require.Equal(t, input, got)
}

func TestCodeTableTooDeep(t *testing.T) {
	tree, err := BuildTree(fibonacciTable(66))
	require.NoError(t, err)
	require.Equal(t, 65, tree.Depth())

	_, err = NewCodeTable(tree)
	require.ErrorIs(t, err, ErrCodeTooLong)
	_, err = NewCodec(tree)
	require.ErrorIs(t, err, ErrCodeTooLong)
}
