package huffman

import (
	"container/heap"
	"fmt"
	"io"
)

const noChild = -1

type node struct {
	weight      int   // own count for leaves, sum of children otherwise
	left, right int32 // arena indices, noChild when absent
	symbol      byte
}

func (n *node) isLeaf() bool {
	return n.left == noChild && n.right == noChild
}

// Tree is a binary prefix-code tree stored as an arena of nodes addressed by
// index. Left edges are 0 bits and right edges are 1 bits.
//
// A Tree is immutable once built and safe for concurrent readers. Trees
// restored with UnmarshalBinary carry no weights.
type Tree struct {
	nodes []node
	root  int32
}

func (t *Tree) add(n node) int32 {
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

// mergeQueue is a min-heap of arena indices ordered by weight, then by index.
// Leaves are added in ascending symbol order and merged nodes are appended as
// they are created, so the index doubles as the tie-break sequence number.
type mergeQueue struct {
	nodes []node
	items []int32
}

func (q *mergeQueue) Len() int { return len(q.items) }

func (q *mergeQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if wa, wb := q.nodes[a].weight, q.nodes[b].weight; wa != wb {
		return wa < wb
	}
	return a < b
}

func (q *mergeQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *mergeQueue) Push(x any) { q.items = append(q.items, x.(int32)) }

func (q *mergeQueue) Pop() any {
	n := len(q.items)
	x := q.items[n-1]
	q.items = q.items[:n-1]
	return x
}

// BuildTree reduces a frequency table to a single-rooted prefix-code tree by
// repeatedly merging the two lightest nodes. Of each merged pair the node
// removed first becomes the Left child. Equal weights are ordered leaves
// first by ascending symbol, then merged nodes by creation order.
//
// A table with one distinct symbol yields a root whose only child is that
// leaf on the Left, so the symbol still receives a 1-bit code.
func BuildTree(freq FrequencyTable) (*Tree, error) {
	if err := freq.validate(); err != nil {
		return nil, err
	}
	symbols := freq.Symbols()
	if len(symbols) == 0 {
		return nil, ErrEmptyInput
	}

	t := &Tree{nodes: make([]node, 0, 2*len(symbols))}
	if len(symbols) == 1 {
		sym := symbols[0]
		leaf := t.add(node{weight: freq[sym], left: noChild, right: noChild, symbol: sym})
		t.root = t.add(node{weight: freq[sym], left: leaf, right: noChild})
		return t, nil
	}

	q := &mergeQueue{items: make([]int32, 0, len(symbols))}
	for _, sym := range symbols {
		q.items = append(q.items, t.add(node{weight: freq[sym], left: noChild, right: noChild, symbol: sym}))
	}
	q.nodes = t.nodes
	heap.Init(q)

	for q.Len() > 1 {
		a := heap.Pop(q).(int32)
		b := heap.Pop(q).(int32)
		parent := t.add(node{
			weight: t.nodes[a].weight + t.nodes[b].weight,
			left:   a,
			right:  b,
		})
		q.nodes = t.nodes
		heap.Push(q, parent)
	}

	t.root = q.items[0]
	return t, nil
}

// Leaves returns the number of leaves, one per distinct symbol.
func (t *Tree) Leaves() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].isLeaf() {
			n++
		}
	}
	return n
}

// Weight returns the aggregate frequency at the root, which is the length of
// the input the tree was built from. It is 0 for unmarshaled trees.
func (t *Tree) Weight() int {
	if len(t.nodes) == 0 {
		return 0
	}
	return t.nodes[t.root].weight
}

// Depth returns the length of the longest path from the root to a leaf.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	type frame struct {
		idx   int32
		depth int
	}
	maxDepth := 0
	stack := []frame{{idx: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[f.idx]
		if n.isLeaf() {
			maxDepth = max(maxDepth, f.depth)
			continue
		}
		if n.left != noChild {
			stack = append(stack, frame{n.left, f.depth + 1})
		}
		if n.right != noChild {
			stack = append(stack, frame{n.right, f.depth + 1})
		}
	}
	return maxDepth
}

// check verifies the structural invariants: a single internal root, every
// node reachable exactly once, strictly binary internal nodes (except the root
// of a one-leaf tree) and unique leaf symbols.
func (t *Tree) check() error {
	if t == nil || len(t.nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrCorruptTree)
	}
	if len(t.nodes) > maxNodes {
		return fmt.Errorf("%w: %d nodes exceeds %d", ErrCorruptTree, len(t.nodes), maxNodes)
	}
	count := int32(len(t.nodes))
	if t.root < 0 || t.root >= count {
		return fmt.Errorf("%w: root index %d out of range", ErrCorruptTree, t.root)
	}
	if t.nodes[t.root].isLeaf() {
		return fmt.Errorf("%w: root is a leaf", ErrCorruptTree)
	}

	visited := make([]bool, count)
	var symbols [alphabetSize]bool
	stack := []int32{t.root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[idx] {
			return fmt.Errorf("%w: node %d reached twice", ErrCorruptTree, idx)
		}
		visited[idx] = true

		n := &t.nodes[idx]
		if n.isLeaf() {
			if symbols[n.symbol] {
				return fmt.Errorf("%w: duplicate leaf for symbol %#02x", ErrCorruptTree, n.symbol)
			}
			symbols[n.symbol] = true
			continue
		}
		if n.left == noChild {
			return fmt.Errorf("%w: node %d has no left child", ErrCorruptTree, idx)
		}
		if n.right == noChild && (idx != t.root || count != 2) {
			return fmt.Errorf("%w: node %d has no right child", ErrCorruptTree, idx)
		}
		for _, child := range [2]int32{n.left, n.right} {
			if child == noChild {
				continue
			}
			if child < 0 || child >= count {
				return fmt.Errorf("%w: node %d has child index %d out of range", ErrCorruptTree, idx, child)
			}
			stack = append(stack, child)
		}
	}

	for idx, ok := range visited {
		if !ok {
			return fmt.Errorf("%w: node %d is unreachable", ErrCorruptTree, idx)
		}
	}
	return nil
}

// Format draws the tree sideways, root on the left, Left subtrees above their
// parent and Right subtrees below.
func (t *Tree) Format(w io.Writer) error {
	if err := t.check(); err != nil {
		return err
	}
	return t.format(w, t.root, "", "---")
}

func (t *Tree) format(w io.Writer, idx int32, indent, edge string) error {
	n := &t.nodes[idx]
	if n.isLeaf() {
		_, err := fmt.Fprintf(w, "%s%s%q\n", indent, edge, n.symbol)
		return err
	}

	child := indent + "    "
	if err := t.format(w, n.left, child, "/--"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%s<\n", indent, edge); err != nil {
		return err
	}
	if n.right != noChild {
		return t.format(w, n.right, child, "\\--")
	}
	return nil
}
