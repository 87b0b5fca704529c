package huffman

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/seiflotfy/huffman/bitseq"
)

// Tree wire format:
//
//	leafCount = uint16 little-endian, 1..256
//	shape     = preorder bits, MSB-first, zero-padded to a byte boundary
//	            0            internal node, followed by its Left then Right subtree
//	            1 + 8 bits   leaf and its symbol
//
// The root of a one-leaf tree has no Right subtree.
const treeHeaderLen = 2

// MarshalBinary encodes the tree shape and leaf symbols. Weights are not stored.
func (t *Tree) MarshalBinary() ([]byte, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	w := bitseq.NewWriter()
	stack := []int32{t.root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[idx]
		if n.isLeaf() {
			w.WriteBit(true)
			w.Write(uint64(n.symbol), 8)
			continue
		}
		w.WriteBit(false)
		if n.right != noChild {
			stack = append(stack, n.right)
		}
		stack = append(stack, n.left)
	}
	shape, err := w.Sequence()
	if err != nil {
		return nil, err
	}

	out := make([]byte, treeHeaderLen, treeHeaderLen+len(shape.Bytes()))
	binary.LittleEndian.PutUint16(out, uint16(t.Leaves()))
	return append(out, shape.Bytes()...), nil
}

// UnmarshalBinary replaces t with the tree encoded in data. Any inconsistency
// is reported as ErrCorruptTree.
func (t *Tree) UnmarshalBinary(data []byte) error {
	if len(data) < treeHeaderLen {
		return fmt.Errorf("%w: header too short: %d bytes", ErrCorruptTree, len(data))
	}
	leaves := int(binary.LittleEndian.Uint16(data[:treeHeaderLen]))
	if leaves == 0 || leaves > alphabetSize {
		return fmt.Errorf("%w: invalid leaf count %d", ErrCorruptTree, leaves)
	}

	shape := data[treeHeaderLen:]
	seq, err := bitseq.FromBytes(shape, len(shape)*8)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTree, err)
	}
	p := &treeParser{
		r:     bitseq.NewReader(seq),
		want:  leaves,
		nodes: make([]node, 0, 2*leaves),
	}
	root, err := p.parse(0)
	if err != nil {
		return err
	}
	if p.leaves != leaves {
		return fmt.Errorf("%w: declared %d leaves, found %d", ErrCorruptTree, leaves, p.leaves)
	}

	used := p.r.Pos()
	if (used+7)/8 != len(shape) {
		return fmt.Errorf("%w: %d trailing bytes after shape", ErrCorruptTree, len(shape)-(used+7)/8)
	}
	for p.r.Remaining() > 0 {
		if bit, _ := p.r.ReadBit(); bit {
			return fmt.Errorf("%w: non-zero padding", ErrCorruptTree)
		}
	}

	parsed := Tree{nodes: p.nodes, root: root}
	if err := parsed.check(); err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalTree decodes a tree produced by Tree.MarshalBinary.
func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return t, nil
}

type treeParser struct {
	r      *bitseq.Reader
	want   int
	leaves int
	seen   [alphabetSize]bool
	nodes  []node
}

func (p *treeParser) bit() (bool, error) {
	bit, err := p.r.ReadBit()
	if errors.Is(err, io.EOF) {
		return false, fmt.Errorf("%w: shape truncated at bit %d", ErrCorruptTree, p.r.Pos())
	}
	return bit, err
}

func (p *treeParser) parse(depth int) (int32, error) {
	if depth > MaxCodeLen {
		return 0, fmt.Errorf("%w: deeper than %d", ErrCorruptTree, MaxCodeLen)
	}
	leaf, err := p.bit()
	if err != nil {
		return 0, err
	}

	if leaf {
		if depth == 0 {
			return 0, fmt.Errorf("%w: root is a leaf", ErrCorruptTree)
		}
		var sym byte
		for i := 0; i < 8; i++ {
			b, err := p.bit()
			if err != nil {
				return 0, err
			}
			sym <<= 1
			if b {
				sym |= 1
			}
		}
		if p.leaves == p.want {
			return 0, fmt.Errorf("%w: more than %d leaves", ErrCorruptTree, p.want)
		}
		if p.seen[sym] {
			return 0, fmt.Errorf("%w: duplicate leaf for symbol %#02x", ErrCorruptTree, sym)
		}
		p.seen[sym] = true
		p.leaves++
		p.nodes = append(p.nodes, node{left: noChild, right: noChild, symbol: sym})
		return int32(len(p.nodes) - 1), nil
	}

	if len(p.nodes) >= maxNodes {
		return 0, fmt.Errorf("%w: more than %d nodes", ErrCorruptTree, maxNodes)
	}
	p.nodes = append(p.nodes, node{left: noChild, right: noChild})
	idx := int32(len(p.nodes) - 1)

	left, err := p.parse(depth + 1)
	if err != nil {
		return 0, err
	}
	p.nodes[idx].left = left
	if depth == 0 && p.want == 1 {
		return idx, nil
	}

	right, err := p.parse(depth + 1)
	if err != nil {
		return 0, err
	}
	p.nodes[idx].right = right
	return idx, nil
}
