// Package bitseq provides an ordered, MSB-first packed sequence of bits and
// the writer/reader pair used to produce and consume it.
package bitseq

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/icza/bitio"
)

// MaxWriteBits is the largest number of bits accepted by a single Write call.
const MaxWriteBits = 64

var (
	// ErrLength indicates a packed buffer whose size disagrees with its bit length.
	ErrLength = errors.New("bitseq: length mismatch")
	// ErrSyntax indicates a textual bit string containing something other than '0' or '1'.
	ErrSyntax = errors.New("bitseq: invalid bit string")
)

// Sequence is an immutable ordered sequence of bits. Bits are packed
// most-significant-bit first; unused bits of the last byte are zero.
type Sequence struct {
	data []byte
	n    int
}

// FromBytes wraps a packed buffer holding n bits. The buffer must be exactly
// ceil(n/8) bytes long. The buffer is copied.
func FromBytes(data []byte, n int) (Sequence, error) {
	if n < 0 {
		return Sequence{}, fmt.Errorf("%w: negative bit count %d", ErrLength, n)
	}
	if want := packedLen(n); len(data) != want {
		return Sequence{}, fmt.Errorf("%w: %d bits need %d bytes, have %d", ErrLength, n, want, len(data))
	}
	buf := append([]byte(nil), data...)
	if rem := n % 8; rem != 0 {
		buf[len(buf)-1] &= byte(0xFF << (8 - rem))
	}
	return Sequence{data: buf, n: n}, nil
}

// Parse builds a Sequence from a string of '0' and '1' characters.
func Parse(s string) (Sequence, error) {
	w := NewWriter()
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			w.WriteBit(false)
		case '1':
			w.WriteBit(true)
		default:
			return Sequence{}, fmt.Errorf("%w: %q at position %d", ErrSyntax, s[i], i)
		}
	}
	return w.Sequence()
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and package-level fixtures.
func MustParse(s string) Sequence {
	seq, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return seq
}

func packedLen(n int) int {
	return (n + 7) / 8
}

// Len returns the number of bits in the sequence.
func (s Sequence) Len() int {
	return s.n
}

// Bytes returns the packed representation. The caller must not modify it.
func (s Sequence) Bytes() []byte {
	return s.data
}

// Bit reports the bit at position i.
func (s Sequence) Bit(i int) bool {
	if i < 0 || i >= s.n {
		panic(fmt.Sprintf("bitseq: index %d out of range [0,%d)", i, s.n))
	}
	return s.data[i/8]&(0x80>>(i%8)) != 0
}

// Truncate returns the first n bits of the sequence. n is clamped to [0, Len()].
func (s Sequence) Truncate(n int) Sequence {
	if n >= s.n {
		return s
	}
	if n < 0 {
		n = 0
	}
	out, _ := FromBytes(s.data[:packedLen(n)], n)
	return out
}

// Equal reports whether both sequences hold the same bits.
func (s Sequence) Equal(other Sequence) bool {
	return s.n == other.n && bytes.Equal(s.data, other.data)
}

// String renders the sequence as '0'/'1' characters.
func (s Sequence) String() string {
	var sb strings.Builder
	sb.Grow(s.n)
	for i := 0; i < s.n; i++ {
		if s.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Writer accumulates bits into a Sequence.
type Writer struct {
	buf bytes.Buffer
	bw  *bitio.Writer
	n   int
	err error
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.bw = bitio.NewWriter(&w.buf)
	return w
}

// Write appends the n lowest bits of v, most significant first.
func (w *Writer) Write(v uint64, n uint8) {
	if w.err != nil {
		return
	}
	if n > MaxWriteBits {
		w.err = fmt.Errorf("bitseq: write of %d bits exceeds %d", n, MaxWriteBits)
		return
	}
	if n == 0 {
		return
	}
	if n < 64 {
		v &= 1<<n - 1
	}
	if err := w.bw.WriteBits(v, n); err != nil {
		w.err = err
		return
	}
	w.n += int(n)
}

// WriteBit appends a single bit.
func (w *Writer) WriteBit(bit bool) {
	if w.err != nil {
		return
	}
	if err := w.bw.WriteBool(bit); err != nil {
		w.err = err
		return
	}
	w.n++
}

// Len returns the number of bits written so far.
func (w *Writer) Len() int {
	return w.n
}

// Sequence flushes pending bits and returns the result. The Writer must not be
// used afterwards.
func (w *Writer) Sequence() (Sequence, error) {
	if w.err != nil {
		return Sequence{}, w.err
	}
	if err := w.bw.Close(); err != nil {
		return Sequence{}, err
	}
	w.err = errors.New("bitseq: writer already closed")
	return Sequence{data: w.buf.Bytes(), n: w.n}, nil
}

// Reader consumes a Sequence bit by bit.
type Reader struct {
	br  *bitio.Reader
	pos int
	n   int
}

// NewReader returns a Reader positioned at the first bit of s.
func NewReader(s Sequence) *Reader {
	return &Reader{
		br: bitio.NewReader(bytes.NewReader(s.data)),
		n:  s.n,
	}
}

// ReadBit returns the next bit, or io.EOF once all bits are consumed.
func (r *Reader) ReadBit() (bool, error) {
	if r.pos >= r.n {
		return false, io.EOF
	}
	bit, err := r.br.ReadBool()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return false, err
	}
	r.pos++
	return bit, nil
}

// Pos returns the index of the next bit to be read.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return r.n - r.pos
}
