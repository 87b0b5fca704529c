package huffman

import (
	"fmt"
	"sort"
)

// FrequencyTable maps each symbol to its occurrence count.
type FrequencyTable map[byte]int

// CountFrequencies scans symbols once and counts every distinct byte.
// An empty input yields an empty table.
func CountFrequencies(symbols []byte) FrequencyTable {
	var counts [alphabetSize]int
	for _, s := range symbols {
		counts[s]++
	}

	freq := make(FrequencyTable)
	for sym, n := range counts {
		if n > 0 {
			freq[byte(sym)] = n
		}
	}
	return freq
}

// Total returns the sum of all counts, which equals the input length.
func (f FrequencyTable) Total() int {
	total := 0
	for _, n := range f {
		total += n
	}
	return total
}

// Symbols returns the symbols with a positive count in ascending order.
func (f FrequencyTable) Symbols() []byte {
	syms := make([]byte, 0, len(f))
	for sym, n := range f {
		if n > 0 {
			syms = append(syms, sym)
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

// Merge adds the counts of other into f, allocating f if it is nil.
func (f *FrequencyTable) Merge(other FrequencyTable) {
	if *f == nil {
		*f = make(FrequencyTable, len(other))
	}
	for sym, n := range other {
		(*f)[sym] += n
	}
}

func (f FrequencyTable) validate() error {
	for sym, n := range f {
		if n < 0 {
			return fmt.Errorf("%w: symbol %#02x has count %d", ErrInvalidFrequency, sym, n)
		}
	}
	return nil
}
