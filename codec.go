package huffman

import (
	"errors"
	"fmt"
	"io"

	"github.com/seiflotfy/huffman/bitseq"
)

// Codec is a reusable tree and code table. It can encode any input made of
// the symbols the tree covers, not only the input it was trained on.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	tree  *Tree
	codes *CodeTable
}

// NewCodec validates tree and derives its code table.
func NewCodec(tree *Tree) (*Codec, error) {
	codes, err := NewCodeTable(tree)
	if err != nil {
		return nil, err
	}
	return &Codec{tree: tree, codes: codes}, nil
}

// TrainCodec builds a codec from the combined symbol frequencies of samples.
func TrainCodec(samples ...[]byte) (*Codec, error) {
	var freq FrequencyTable
	for _, s := range samples {
		freq.Merge(CountFrequencies(s))
	}
	tree, err := BuildTree(freq)
	if err != nil {
		return nil, err
	}
	return NewCodec(tree)
}

// Tree returns the codec's tree.
func (c *Codec) Tree() *Tree {
	return c.tree
}

// Codes returns the codec's code table.
func (c *Codec) Codes() *CodeTable {
	return c.codes
}

// Encode concatenates the code of every symbol in input order. A symbol
// without a code fails the whole call with ErrUnknownSymbol.
func (c *Codec) Encode(symbols []byte) (bitseq.Sequence, error) {
	if len(symbols) == 0 {
		return bitseq.Sequence{}, ErrEmptyInput
	}

	w := bitseq.NewWriter()
	for offset, sym := range symbols {
		code, ok := c.codes.Lookup(sym)
		if !ok {
			return bitseq.Sequence{}, fmt.Errorf("%w %#02x at offset %d", ErrUnknownSymbol, sym, offset)
		}
		w.Write(code.Bits, code.Len)
	}
	return w.Sequence()
}

// Decode reconstructs the symbols encoded in bits.
func (c *Codec) Decode(bits bitseq.Sequence) ([]byte, error) {
	return c.tree.walk(bits, 0)
}

// walk follows bits from the root, emitting a symbol and returning to the
// root at every leaf. The stream must end exactly at the root. The tree must
// already have passed check.
func (t *Tree) walk(bits bitseq.Sequence, sizeHint int) ([]byte, error) {
	out := make([]byte, 0, sizeHint)
	r := bitseq.NewReader(bits)
	cur := t.root
	for {
		bit, err := r.ReadBit()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		n := &t.nodes[cur]
		next := n.left
		if bit {
			next = n.right
		}
		if next == noChild {
			return nil, fmt.Errorf("%w: no child for bit %d after %d symbols", ErrCorruptTree, r.Pos()-1, len(out))
		}
		if leaf := &t.nodes[next]; leaf.isLeaf() {
			out = append(out, leaf.symbol)
			cur = t.root
			continue
		}
		cur = next
	}

	if cur != t.root {
		return nil, fmt.Errorf("%w: %d bits end inside a code after %d symbols", ErrTruncatedStream, bits.Len(), len(out))
	}
	return out, nil
}

func decode(tree *Tree, bits bitseq.Sequence, sizeHint int) ([]byte, error) {
	if err := tree.check(); err != nil {
		return nil, err
	}
	return tree.walk(bits, sizeHint)
}
