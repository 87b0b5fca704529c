// Command huff inspects, encodes and decodes files with Huffman codes.
//
//	huff inspect [-tree] [-text] [-keep-newlines] [-limit n] FILE
//	huff encode  [-o OUT] [-checksum] [-payload auto|raw|flate|zstd] FILE...
//	huff decode  [-o OUT] [-cache n] ARCHIVE...
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/seiflotfy/huffman"
	"github.com/seiflotfy/huffman/internal/logger"
)

const archiveExt = ".huf"

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "inspect":
		err = runInspect(args[1:], stdout, stderr)
	case "encode":
		err = runEncode(args[1:], stderr)
	case "decode":
		err = runDecode(args[1:], stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "huff: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		logger.New(stderr, false).Errorf("%v", err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: huff <command> [flags] [files]

commands:
  inspect   print frequencies, codes, bit dumps and the compression ratio
  encode    write FILE.huf archives
  decode    restore files from .huf archives
`)
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "log debug output")
	return fs, verbose
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs, verbose := newFlagSet("inspect", stderr)
	drawTree := fs.Bool("tree", false, "draw the code tree")
	keepNewlines := fs.Bool("keep-newlines", false, "keep newline characters in the input")
	limit := fs.Int("limit", 64, "max input bytes shown in dumps (0 = all)")
	showText := fs.Bool("text", false, "print the original and decoded text")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: huff inspect [flags] FILE")
		return errUsage
	}
	log := logger.New(stderr, *verbose)

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !*keepNewlines {
		data = bytes.ReplaceAll(data, []byte("\n"), nil)
	}
	log.Debugf("read %d bytes from %s", len(data), path)

	archive, err := huffman.Encode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	decoded, err := archive.Decode()
	if err != nil {
		return fmt.Errorf("%s: verify: %w", path, err)
	}
	if !bytes.Equal(decoded, data) {
		return fmt.Errorf("%s: decoded output differs from input", path)
	}

	r := &report{
		p:        message.NewPrinter(language.English),
		input:    data,
		archive:  archive,
		decoded:  decoded,
		limit:    *limit,
		drawTree: *drawTree,
		showText: *showText,
	}
	return r.write(stdout)
}

func parsePayload(s string) (huffman.PayloadCodec, error) {
	for _, p := range []huffman.PayloadCodec{huffman.PayloadAuto, huffman.PayloadRaw, huffman.PayloadFlate, huffman.PayloadZstd} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown payload codec %q", s)
}

func runEncode(args []string, stderr io.Writer) error {
	fs, verbose := newFlagSet("encode", stderr)
	out := fs.String("o", "", "output path (single input only, default FILE"+archiveExt+")")
	checksum := fs.Bool("checksum", false, "store an xxhash64 digest of each input")
	payloadName := fs.String("payload", "auto", "bit stage encoding: auto, raw, flate or zstd")
	workers := fs.Int("j", 0, "parallel workers (0 = GOMAXPROCS)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 || (*out != "" && fs.NArg() > 1) {
		fmt.Fprintln(stderr, "usage: huff encode [-o OUT] [flags] FILE...")
		return errUsage
	}
	payload, err := parsePayload(*payloadName)
	if err != nil {
		return err
	}
	log := logger.New(stderr, *verbose)

	paths := fs.Args()
	inputs := make([][]byte, len(paths))
	for i, path := range paths {
		if inputs[i], err = os.ReadFile(path); err != nil {
			return err
		}
	}

	enc := huffman.NewEncoder(
		huffman.WithChecksum(*checksum),
		huffman.WithPayloadCodec(payload),
		huffman.WithConcurrency(*workers),
	)
	archives, err := enc.EncodeAll(context.Background(), inputs)
	if err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	for i, a := range archives {
		dst := paths[i] + archiveExt
		if *out != "" {
			dst = *out
		}
		n, err := writeArchive(dst, a)
		if err != nil {
			return err
		}
		stats := a.Stats()
		log.Infof("%s", p.Sprintf("%s -> %s: %d symbols, %d -> %d bits (%.2fx), %d bytes written",
			paths[i], dst, stats.Symbols, stats.OriginalBits, stats.EncodedBits, stats.Ratio(), n))
	}
	return nil
}

func writeArchive(path string, a *huffman.Archive) (n int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return a.WriteTo(f)
}

func runDecode(args []string, stderr io.Writer) error {
	fs, verbose := newFlagSet("decode", stderr)
	out := fs.String("o", "", "output path (single input only, default ARCHIVE without "+archiveExt+")")
	cacheSize := fs.Int("cache", 16, "parsed tree cache entries (0 = off)")
	workers := fs.Int("j", 0, "parallel workers (0 = GOMAXPROCS)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 || (*out != "" && fs.NArg() > 1) {
		fmt.Fprintln(stderr, "usage: huff decode [-o OUT] [flags] ARCHIVE...")
		return errUsage
	}
	log := logger.New(stderr, *verbose)

	paths := fs.Args()
	dsts := make([]string, len(paths))
	raw := make([][]byte, len(paths))
	for i, path := range paths {
		switch {
		case *out != "":
			dsts[i] = *out
		case strings.HasSuffix(path, archiveExt) && len(path) > len(archiveExt):
			dsts[i] = strings.TrimSuffix(path, archiveExt)
		default:
			return fmt.Errorf("%s: cannot derive output name, use -o", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		raw[i] = data
	}

	dec, err := huffman.NewDecoder(huffman.WithTreeCacheSize(*cacheSize), huffman.WithConcurrency(*workers))
	if err != nil {
		return err
	}
	decoded, err := dec.DecodeAll(context.Background(), raw)
	if err != nil {
		return err
	}
	log.Debugf("tree cache holds %d trees", dec.TreeCache().Len())

	p := message.NewPrinter(language.English)
	for i, data := range decoded {
		if err := os.WriteFile(dsts[i], data, 0o644); err != nil {
			return err
		}
		log.Infof("%s", p.Sprintf("%s -> %s: %d bytes", paths[i], dsts[i], len(data)))
	}
	return nil
}
