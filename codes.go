package huffman

import (
	"fmt"
	"strings"
)

// Code is the bit string assigned to one symbol: the Len low bits of Bits,
// read most significant first, give the path from the root (0 = Left, 1 = Right).
type Code struct {
	Bits uint64
	Len  uint8
}

// String renders the code as '0'/'1' characters.
func (c Code) String() string {
	var sb strings.Builder
	sb.Grow(int(c.Len))
	for i := int(c.Len) - 1; i >= 0; i-- {
		if c.Bits>>uint(i)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// HasPrefix reports whether p is a prefix of c.
func (c Code) HasPrefix(p Code) bool {
	if p.Len > c.Len {
		return false
	}
	return c.Bits>>(c.Len-p.Len) == p.Bits
}

// CodeTable maps each symbol of a tree to its code. It is immutable once
// built. No code is a prefix of another, and every code is at least one bit.
type CodeTable struct {
	codes [alphabetSize]Code // Len == 0 marks an absent symbol
	count int
}

// NewCodeTable walks t depth-first and records the path to every leaf.
func NewCodeTable(t *Tree) (*CodeTable, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	type frame struct {
		idx  int32
		code Code
	}
	ct := &CodeTable{}
	stack := make([]frame, 0, MaxCodeLen+1)
	stack = append(stack, frame{idx: t.root})
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[f.idx]
		if n.isLeaf() {
			ct.codes[n.symbol] = f.code
			ct.count++
			continue
		}
		if f.code.Len == MaxCodeLen {
			return nil, fmt.Errorf("%w: tree deeper than %d", ErrCodeTooLong, MaxCodeLen)
		}
		if n.right != noChild {
			stack = append(stack, frame{n.right, Code{Bits: f.code.Bits<<1 | 1, Len: f.code.Len + 1}})
		}
		stack = append(stack, frame{n.left, Code{Bits: f.code.Bits << 1, Len: f.code.Len + 1}})
	}
	return ct, nil
}

// Lookup returns the code for sym.
func (ct *CodeTable) Lookup(sym byte) (Code, bool) {
	c := ct.codes[sym]
	return c, c.Len > 0
}

// Len returns the number of symbols with a code.
func (ct *CodeTable) Len() int {
	return ct.count
}

// Symbols returns the coded symbols in ascending order.
func (ct *CodeTable) Symbols() []byte {
	syms := make([]byte, 0, ct.count)
	for sym := range ct.codes {
		if ct.codes[sym].Len > 0 {
			syms = append(syms, byte(sym))
		}
	}
	return syms
}

// MaxLen returns the length of the longest code.
func (ct *CodeTable) MaxLen() int {
	m := 0
	for _, c := range ct.codes {
		m = max(m, int(c.Len))
	}
	return m
}

// EncodedLen returns the number of bits needed to encode an input with the
// given frequencies: the sum of count times code length.
func (ct *CodeTable) EncodedLen(freq FrequencyTable) (int, error) {
	total := 0
	for _, sym := range freq.Symbols() {
		c, ok := ct.Lookup(sym)
		if !ok {
			return 0, fmt.Errorf("%w: %#02x", ErrUnknownSymbol, sym)
		}
		total += freq[sym] * int(c.Len)
	}
	return total, nil
}
