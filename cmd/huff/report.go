package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/message"

	"github.com/seiflotfy/huffman"
)

// report renders what inspect prints for one input.
type report struct {
	p        *message.Printer
	input    []byte
	archive  *huffman.Archive
	decoded  []byte
	limit    int // input bytes shown in dumps, 0 = all
	drawTree bool
	showText bool
}

func (r *report) write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	freq := huffman.CountFrequencies(r.input)
	codes := r.archive.Codes

	r.p.Fprintf(bw, "Symbol frequencies (%d distinct):\n", codes.Len())
	for _, sym := range freq.Symbols() {
		r.p.Fprintf(bw, "  %-8s %d\n", symbolName(sym), freq[sym])
	}

	r.p.Fprintf(bw, "\nHuffman codes (longest %d bits):\n", codes.MaxLen())
	for _, sym := range codes.Symbols() {
		code, _ := codes.Lookup(sym)
		fmt.Fprintf(bw, "  %-8s %s\n", symbolName(sym), code)
	}

	shown, more := r.shown()
	fmt.Fprintln(bw, "\nBinary representation of the input:")
	for i, b := range r.input[:shown] {
		if i > 0 {
			bw.WriteByte(' ')
		}
		fmt.Fprintf(bw, "%08b", b)
	}
	if more {
		bw.WriteString(" ...")
	}
	bw.WriteByte('\n')

	fmt.Fprintln(bw, "\nEncoded bits:")
	bits := r.encodedPrefix(shown)
	bw.WriteString(bits)
	if more {
		bw.WriteString("...")
	}
	bw.WriteByte('\n')

	stats := r.archive.Stats()
	r.p.Fprintf(bw, "\nBits before compression: %d\n", stats.OriginalBits)
	r.p.Fprintf(bw, "Bits after compression:  %d\n", stats.EncodedBits)
	r.p.Fprintf(bw, "Bits per symbol:         %.3f\n", stats.BitsPerSymbol())
	r.p.Fprintf(bw, "Compression ratio:       %.2f\n", stats.Ratio())
	fmt.Fprintln(bw, "Decoded output matches the input.")

	if r.showText {
		fmt.Fprintln(bw, "\nOriginal text:")
		writeText(bw, r.input, shown, more)
		fmt.Fprintln(bw, "Decoded text:")
		writeText(bw, r.decoded, shown, more)
	}

	if r.drawTree {
		fmt.Fprintln(bw, "\nTree:")
		if err := r.archive.Tree.Format(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// shown returns how many input bytes the dumps cover and whether some were cut.
func (r *report) shown() (int, bool) {
	if r.limit <= 0 || r.limit >= len(r.input) {
		return len(r.input), false
	}
	return r.limit, true
}

// encodedPrefix renders the codes of the first n input symbols.
func (r *report) encodedPrefix(n int) string {
	if n == len(r.input) {
		return r.archive.Bits.String()
	}
	var sb strings.Builder
	for _, sym := range r.input[:n] {
		code, _ := r.archive.Codes.Lookup(sym)
		sb.WriteString(code.String())
	}
	return sb.String()
}

func writeText(bw *bufio.Writer, text []byte, n int, more bool) {
	bw.Write(text[:min(n, len(text))])
	if more {
		bw.WriteString("...")
	}
	bw.WriteByte('\n')
}

func symbolName(sym byte) string {
	if sym >= 0x21 && sym < 0x7f {
		return string(rune(sym))
	}
	return fmt.Sprintf("%#02x", sym)
}
