package huffman

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// TreeCache keeps recently parsed trees, with their code tables, keyed by a
// digest of their serialized form. Archives that share a tree then skip
// parsing and validation. It is safe for concurrent use.
type TreeCache struct {
	entries *lru.Cache[uint64, *cachedTree]
}

type cachedTree struct {
	raw   []byte
	codec *Codec
}

// NewTreeCache returns a cache holding up to size trees.
func NewTreeCache(size int) (*TreeCache, error) {
	entries, err := lru.New[uint64, *cachedTree](size)
	if err != nil {
		return nil, err
	}
	return &TreeCache{entries: entries}, nil
}

// Len returns the number of cached trees.
func (c *TreeCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// codec returns the parsed form of a serialized tree. A nil cache parses
// every time.
func (c *TreeCache) codec(raw []byte) (*Codec, error) {
	if c == nil {
		return parseCodec(raw)
	}

	key := xxhash.Sum64(raw)
	if hit, ok := c.entries.Get(key); ok && string(hit.raw) == string(raw) {
		return hit.codec, nil
	}
	codec, err := parseCodec(raw)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, &cachedTree{raw: append([]byte(nil), raw...), codec: codec})
	return codec, nil
}

func parseCodec(raw []byte) (*Codec, error) {
	tree, err := UnmarshalTree(raw)
	if err != nil {
		return nil, err
	}
	return NewCodec(tree)
}
