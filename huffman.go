// Package huffman builds optimal prefix codes for byte streams, encodes
// streams into packed bit sequences and reconstructs them losslessly.
//
// The pipeline runs strictly forward: CountFrequencies produces a
// FrequencyTable, BuildTree reduces it to a prefix-code Tree, NewCodeTable
// derives the per-symbol codes and a Codec maps symbols to bits and back.
// Encode and Decode wrap the whole pipeline; an Archive carries the tree and
// the bits across process boundaries.
package huffman

import (
	"errors"
	"runtime"

	"github.com/seiflotfy/huffman/bitseq"
)

const (
	alphabetSize = 256 // alphabetSize is the number of distinct byte symbols
	maxNodes     = 2*alphabetSize - 1

	// MaxCodeLen is the longest code a CodeTable can hold.
	MaxCodeLen = 64
)

var (
	// ErrEmptyInput indicates there are no symbols to build a tree from.
	ErrEmptyInput = errors.New("empty input")
	// ErrUnknownSymbol indicates a symbol that has no code in the table.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrTruncatedStream indicates a bit sequence that ends in the middle of a code.
	ErrTruncatedStream = errors.New("truncated stream")
	// ErrCorruptTree indicates a structurally invalid tree, or bits that walk off it.
	ErrCorruptTree = errors.New("corrupt tree")
	// ErrCodeTooLong indicates a tree deeper than MaxCodeLen.
	ErrCodeTooLong = errors.New("code too long")
	// ErrInvalidFrequency indicates a negative count in a FrequencyTable.
	ErrInvalidFrequency = errors.New("invalid frequency")
	// ErrCorruptArchive indicates a malformed archive container.
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrChecksumMismatch indicates decoded data that does not match the stored digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// PayloadCodec selects how the bit stage of an archive is stored.
type PayloadCodec uint8

const (
	PayloadAuto  PayloadCodec = iota // smallest of raw, flate and zstd
	PayloadRaw                       // packed bits as-is
	PayloadFlate                     // flate(packed bits)
	PayloadZstd                      // zstd(packed bits)
)

func (p PayloadCodec) String() string {
	switch p {
	case PayloadAuto:
		return "auto"
	case PayloadRaw:
		return "raw"
	case PayloadFlate:
		return "flate"
	case PayloadZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Config holds configuration for encoders and decoders.
type Config struct {
	Checksum      bool         // Store an xxhash64 digest of the input in archives
	Payload       PayloadCodec // Bit stage storage (0 = auto)
	Concurrency   int          // Workers for batch operations (0 = GOMAXPROCS)
	TreeCacheSize int          // Parsed-tree LRU entries for decoders (0 = disabled)
}

// Option is a functional option for configuring encoders and decoders.
type Option func(*Config)

// WithChecksum enables storing and verifying a digest of the input.
func WithChecksum(enabled bool) Option {
	return func(c *Config) {
		c.Checksum = enabled
	}
}

// WithPayloadCodec sets how archives store the encoded bits.
// Unknown values fall back to PayloadAuto.
func WithPayloadCodec(p PayloadCodec) Option {
	return func(c *Config) {
		c.Payload = p
	}
}

// WithConcurrency sets the worker limit for EncodeAll and DecodeAll.
// Values below 1 mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithTreeCacheSize enables an LRU cache of parsed trees in a Decoder.
func WithTreeCacheSize(n int) Option {
	return func(c *Config) {
		c.TreeCacheSize = n
	}
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func resolvePayloadCodec(cfg Config) PayloadCodec {
	switch cfg.Payload {
	case PayloadRaw, PayloadFlate, PayloadZstd:
		return cfg.Payload
	default:
		return PayloadAuto
	}
}

func resolveConcurrency(cfg Config) int {
	if cfg.Concurrency < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return cfg.Concurrency
}

// Encoder builds a tree per input and encodes the input with it.
// An Encoder holds no per-call state and is safe for concurrent use.
type Encoder struct {
	config Config
}

// NewEncoder creates a new encoder with the given options.
func NewEncoder(opts ...Option) *Encoder {
	return &Encoder{config: newConfig(opts)}
}

// Encode counts symbol frequencies, builds the tree and code table for
// symbols, and returns them together with the encoded bits.
func (e *Encoder) Encode(symbols []byte) (*Archive, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyInput
	}

	tree, err := BuildTree(CountFrequencies(symbols))
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(tree)
	if err != nil {
		return nil, err
	}
	bits, err := codec.Encode(symbols)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		Tree:    tree,
		Codes:   codec.codes,
		Bits:    bits,
		Symbols: len(symbols),
		payload: resolvePayloadCodec(e.config),
	}
	if e.config.Checksum {
		a.setChecksum(symbols)
	}
	return a, nil
}

// Encode builds a code for symbols and encodes them with default options.
// It fails with ErrEmptyInput when symbols is empty.
func Encode(symbols []byte) (*Archive, error) {
	return NewEncoder().Encode(symbols)
}

// Decode walks tree against bits and returns the reconstructed symbols.
func Decode(tree *Tree, bits bitseq.Sequence) ([]byte, error) {
	return decode(tree, bits, 0)
}
