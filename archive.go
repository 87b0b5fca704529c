package huffman

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/seiflotfy/huffman/bitseq"
)

const (
	archiveMagic   = "HUFA"
	archiveVersion = uint16(1)

	stageTree     = "tree"
	stageBits     = "bits"
	stageChecksum = "checksum"

	stageBitsParamRaw   = uint8(0) // header + packed bits
	stageBitsParamFlate = uint8(1) // flate(raw payload)
	stageBitsParamZstd  = uint8(2) // zstd(raw payload)

	maxArchiveStages     = 64
	maxStagePayloadBytes = 1 << 30 // 1 GiB
	maxBitCount          = uint64(maxStagePayloadBytes) * 8

	bitsHeaderLen = 16 // bitLen u64 + symbolCount u64
	checksumLen   = 8
)

// Wire format (version 1):
//
//	magic[4] = "HUFA"
//	version  = uint16 little-endian
//	stageCnt = uint16 little-endian
//	repeat stageCnt times:
//	  nameLen  = uint8
//	  paramLen = uint16 little-endian
//	  dataLen  = uint32 little-endian
//	  name     = nameLen bytes
//	  params   = paramLen bytes
//	  payload  = dataLen bytes
//
// Required stages: tree, bits. Optional: checksum.
// Unknown stages are skipped via dataLen framing.
type wireStageHeader struct {
	name     string
	paramLen uint16
	dataLen  uint32
}

func writeBytes(w io.Writer, b []byte) (int64, error) {
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	}
	if n != len(b) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

func writeStage(w io.Writer, name string, params []byte, payload []byte) (int64, error) {
	if len(name) == 0 || len(name) > 255 {
		return 0, fmt.Errorf("invalid stage name length: %d", len(name))
	}
	if len(params) > int(^uint16(0)) {
		return 0, fmt.Errorf("stage params too large for %q: %d", name, len(params))
	}
	if len(payload) > maxStagePayloadBytes {
		return 0, fmt.Errorf("stage payload too large for %q: %d", name, len(payload))
	}

	header := make([]byte, 7, 7+len(name)+len(params))
	header[0] = uint8(len(name))
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(params)))
	binary.LittleEndian.PutUint32(header[3:7], uint32(len(payload)))
	header = append(header, name...)
	header = append(header, params...)

	total, err := writeBytes(w, header)
	if err != nil {
		return total, err
	}
	n, err := writeBytes(w, payload)
	return total + n, err
}

func readStageHeader(r io.Reader) (wireStageHeader, int64, error) {
	var fixed [7]byte
	n, err := io.ReadFull(r, fixed[:])
	total := int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	nameLen := fixed[0]
	if nameLen == 0 {
		return wireStageHeader{}, total, fmt.Errorf("stage name length must be > 0")
	}
	dataLen := binary.LittleEndian.Uint32(fixed[3:7])
	if dataLen > uint32(maxStagePayloadBytes) {
		return wireStageHeader{}, total, fmt.Errorf("stage payload too large: %d", dataLen)
	}

	nameBytes := make([]byte, int(nameLen))
	n, err = io.ReadFull(r, nameBytes)
	total += int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	return wireStageHeader{
		name:     string(nameBytes),
		paramLen: binary.LittleEndian.Uint16(fixed[1:3]),
		dataLen:  dataLen,
	}, total, nil
}

// readPayload reads exactly n bytes. The buffer grows with the data actually
// read, not with the declared length.
func readPayload(r io.Reader, n uint32) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return payload, err
	}
	if len(payload) != int(n) {
		return payload, io.ErrUnexpectedEOF
	}
	return payload, nil
}

// Archive holds everything needed to reconstruct one encoded input: the
// tree, its code table and the encoded bits.
type Archive struct {
	Tree    *Tree
	Codes   *CodeTable
	Bits    bitseq.Sequence
	Symbols int // Number of encoded symbols

	payload     PayloadCodec
	checksum    uint64
	hasChecksum bool
}

func (a *Archive) setChecksum(symbols []byte) {
	a.checksum = xxhash.Sum64(symbols)
	a.hasChecksum = true
}

// Checksum returns the stored xxhash64 digest of the input, if any.
func (a *Archive) Checksum() (uint64, bool) {
	return a.checksum, a.hasChecksum
}

// Decode reconstructs the original symbols and verifies the symbol count and,
// when present, the checksum.
func (a *Archive) Decode() ([]byte, error) {
	if err := validateArchiveStructure(a); err != nil {
		return nil, fmt.Errorf("%w: invalid archive structure: %w", ErrCorruptArchive, err)
	}
	out, err := a.Tree.walk(a.Bits, a.Symbols)
	if err != nil {
		return nil, err
	}
	if len(out) != a.Symbols {
		return nil, fmt.Errorf("%w: decoded %d symbols, expected %d", ErrCorruptArchive, len(out), a.Symbols)
	}
	if a.hasChecksum {
		if sum := xxhash.Sum64(out); sum != a.checksum {
			return nil, fmt.Errorf("%w: got %016x want %016x", ErrChecksumMismatch, sum, a.checksum)
		}
	}
	return out, nil
}

// Stats summarizes the size of an encoding.
type Stats struct {
	Symbols      int // Input length
	Distinct     int // Distinct symbols (tree leaves)
	OriginalBits int // 8 bits per input symbol
	EncodedBits  int // Length of the bit sequence
}

// Ratio returns OriginalBits / EncodedBits.
func (s Stats) Ratio() float64 {
	if s.EncodedBits == 0 {
		return 0
	}
	return float64(s.OriginalBits) / float64(s.EncodedBits)
}

// BitsPerSymbol returns the average code length over the input.
func (s Stats) BitsPerSymbol() float64 {
	if s.Symbols == 0 {
		return 0
	}
	return float64(s.EncodedBits) / float64(s.Symbols)
}

// Stats reports the sizes of the original input and its encoding.
func (a *Archive) Stats() Stats {
	s := Stats{
		Symbols:      a.Symbols,
		OriginalBits: 8 * a.Symbols,
		EncodedBits:  a.Bits.Len(),
	}
	if a.Codes != nil {
		s.Distinct = a.Codes.Len()
	}
	return s
}

func encodeBitsStageRaw(a *Archive) []byte {
	packed := a.Bits.Bytes()
	payload := make([]byte, bitsHeaderLen, bitsHeaderLen+len(packed))
	binary.LittleEndian.PutUint64(payload[0:8], uint64(a.Bits.Len()))
	binary.LittleEndian.PutUint64(payload[8:16], uint64(a.Symbols))
	return append(payload, packed...)
}

func encodeBitsStage(a *Archive) ([]byte, uint8, error) {
	raw := encodeBitsStageRaw(a)
	if len(raw) > maxStagePayloadBytes {
		return nil, 0, fmt.Errorf("bits payload too large: %d", len(raw))
	}

	type candidate struct {
		payload []byte
		param   uint8
	}
	var candidates []candidate
	mode := a.payload

	if mode == PayloadAuto || mode == PayloadRaw {
		candidates = append(candidates, candidate{payload: raw, param: stageBitsParamRaw})
	}
	if mode == PayloadAuto || mode == PayloadFlate {
		flatePayload, err := encodeFlatePayload(raw)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, candidate{payload: flatePayload, param: stageBitsParamFlate})
	}
	if mode == PayloadAuto || mode == PayloadZstd {
		zstdPayload, err := encodeZstdPayload(raw)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, candidate{payload: zstdPayload, param: stageBitsParamZstd})
	}
	if len(candidates) == 0 {
		return nil, 0, fmt.Errorf("unsupported payload codec: %d", mode)
	}

	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if len(candidate.payload) < len(best.payload) {
			best = candidate
		}
	}
	return best.payload, best.param, nil
}

func encodeFlatePayload(raw []byte) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, len(raw)/2))
	fw, err := flate.NewWriter(out, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	_, werr := fw.Write(raw)
	if cerr := fw.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return nil, werr
	}
	return out.Bytes(), nil
}

func decodeFlatePayload(payload []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(payload))
	raw, err := io.ReadAll(io.LimitReader(fr, maxStagePayloadBytes+1))
	if cerr := fr.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return checkExpanded("flate", raw)
}

// checkExpanded rejects a decompressed bits payload above the stage limit.
func checkExpanded(codec string, raw []byte) ([]byte, error) {
	if len(raw) > maxStagePayloadBytes {
		return nil, fmt.Errorf("%s payload expands beyond %d bytes", codec, maxStagePayloadBytes)
	}
	return raw, nil
}

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxStagePayloadBytes))
	})
)

func encodeZstdPayload(raw []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw, nil), nil
}

func decodeZstdPayload(payload []byte) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, err
	}
	return checkExpanded("zstd", raw)
}

func decodeBitsStage(dst *Archive, params []byte, payload []byte) error {
	if len(params) != 1 {
		return fmt.Errorf("bits stage expects 1 param byte, got %d", len(params))
	}

	var (
		raw []byte
		err error
	)
	switch params[0] {
	case stageBitsParamRaw:
		raw = payload
		dst.payload = PayloadRaw
	case stageBitsParamFlate:
		raw, err = decodeFlatePayload(payload)
		dst.payload = PayloadFlate
	case stageBitsParamZstd:
		raw, err = decodeZstdPayload(payload)
		dst.payload = PayloadZstd
	default:
		return fmt.Errorf("unsupported bits encoding: %d", params[0])
	}
	if err != nil {
		return err
	}

	if len(raw) < bitsHeaderLen {
		return fmt.Errorf("bits payload too short: %d", len(raw))
	}
	bitLen := binary.LittleEndian.Uint64(raw[0:8])
	symbols := binary.LittleEndian.Uint64(raw[8:16])
	if bitLen > maxBitCount {
		return fmt.Errorf("bit count too large: %d", bitLen)
	}
	if symbols > bitLen {
		return fmt.Errorf("symbol count %d exceeds bit count %d", symbols, bitLen)
	}

	bits, err := bitseq.FromBytes(raw[bitsHeaderLen:], int(bitLen))
	if err != nil {
		return err
	}
	dst.Bits = bits
	dst.Symbols = int(symbols)
	return nil
}

func decodeChecksumStage(dst *Archive, params []byte, payload []byte) error {
	if len(params) != 0 {
		return fmt.Errorf("checksum stage expects no params, got %d bytes", len(params))
	}
	if len(payload) != checksumLen {
		return fmt.Errorf("checksum payload must be %d bytes, got %d", checksumLen, len(payload))
	}
	dst.checksum = binary.LittleEndian.Uint64(payload)
	dst.hasChecksum = true
	return nil
}

func validateArchiveStructure(a *Archive) error {
	if a.Tree == nil {
		return fmt.Errorf("missing tree")
	}
	if err := a.Tree.check(); err != nil {
		return err
	}
	if a.Symbols <= 0 {
		return fmt.Errorf("symbol count must be > 0: %d", a.Symbols)
	}
	// every code is between 1 and depth bits long
	if a.Bits.Len() < a.Symbols {
		return fmt.Errorf("%d bits cannot hold %d symbols", a.Bits.Len(), a.Symbols)
	}
	if depth := a.Tree.Depth(); a.Bits.Len() > a.Symbols*depth {
		return fmt.Errorf("%d bits exceed %d symbols at depth %d", a.Bits.Len(), a.Symbols, depth)
	}
	return nil
}

// WriteTo serializes the Archive to an io.Writer.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	if err := validateArchiveStructure(a); err != nil {
		return 0, fmt.Errorf("invalid archive: %w", err)
	}

	treePayload, err := a.Tree.MarshalBinary()
	if err != nil {
		return 0, err
	}
	bitsPayload, bitsParam, err := encodeBitsStage(a)
	if err != nil {
		return 0, err
	}

	type stage struct {
		name    string
		params  []byte
		payload []byte
	}
	stages := []stage{
		{name: stageTree, payload: treePayload},
		{name: stageBits, params: []byte{bitsParam}, payload: bitsPayload},
	}
	if a.hasChecksum {
		sum := make([]byte, checksumLen)
		binary.LittleEndian.PutUint64(sum, a.checksum)
		stages = append(stages, stage{name: stageChecksum, payload: sum})
	}

	header := make([]byte, 0, len(archiveMagic)+4)
	header = append(header, archiveMagic...)
	header = binary.LittleEndian.AppendUint16(header, archiveVersion)
	header = binary.LittleEndian.AppendUint16(header, uint16(len(stages)))

	total, err := writeBytes(w, header)
	if err != nil {
		return total, err
	}
	for _, s := range stages {
		n, err := writeStage(w, s.name, s.params, s.payload)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReadFrom deserializes an Archive from an io.Reader.
func (a *Archive) ReadFrom(r io.Reader) (int64, error) {
	return a.readFrom(r, nil)
}

// ReadArchive deserializes an Archive from r.
func ReadArchive(r io.Reader) (*Archive, error) {
	a := &Archive{}
	if _, err := a.ReadFrom(r); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) readFrom(r io.Reader, trees *TreeCache) (int64, error) {
	var total int64
	var magic [4]byte
	n, err := io.ReadFull(r, magic[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("%w: read archive magic at offset 0: %w", ErrCorruptArchive, err)
	}
	if string(magic[:]) != archiveMagic {
		return total, fmt.Errorf("%w: invalid archive magic at offset 0: %q", ErrCorruptArchive, string(magic[:]))
	}

	var fixed [4]byte
	fixedOffset := total
	n, err = io.ReadFull(r, fixed[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("%w: read archive header at offset %d: %w", ErrCorruptArchive, fixedOffset, err)
	}
	if version := binary.LittleEndian.Uint16(fixed[0:2]); version != archiveVersion {
		return total, fmt.Errorf("%w: unsupported archive version at offset %d: %d", ErrCorruptArchive, fixedOffset, version)
	}
	stageCount := binary.LittleEndian.Uint16(fixed[2:4])
	if stageCount == 0 || stageCount > maxArchiveStages {
		return total, fmt.Errorf("%w: invalid stage count at offset %d: %d", ErrCorruptArchive, fixedOffset+2, stageCount)
	}

	var tmp Archive
	var treeCodec *Codec
	seenStages := make(map[string]bool, stageCount)

	for i := 0; i < int(stageCount); i++ {
		headerOffset := total
		header, n, err := readStageHeader(r)
		total += n
		if err != nil {
			return total, fmt.Errorf("%w: read stage header at offset %d (stage index %d): %w", ErrCorruptArchive, headerOffset, i, err)
		}
		if seenStages[header.name] {
			return total, fmt.Errorf("%w: duplicate stage %q at stage index %d", ErrCorruptArchive, header.name, i)
		}

		params := make([]byte, int(header.paramLen))
		paramsOffset := total
		nParams, err := io.ReadFull(r, params)
		total += int64(nParams)
		if err != nil {
			return total, fmt.Errorf("%w: read stage %q params at offset %d (stage index %d): %w", ErrCorruptArchive, header.name, paramsOffset, i, err)
		}

		switch header.name {
		case stageTree, stageBits, stageChecksum:
			payloadOffset := total
			payload, err := readPayload(r, header.dataLen)
			total += int64(len(payload))
			if err != nil {
				return total, fmt.Errorf("%w: read stage %q payload at offset %d (stage index %d): %w", ErrCorruptArchive, header.name, payloadOffset, i, err)
			}

			switch header.name {
			case stageTree:
				// tree errors keep their own kind
				if len(params) != 0 {
					return total, fmt.Errorf("%w: tree stage expects no params at offset %d", ErrCorruptArchive, paramsOffset)
				}
				treeCodec, err = trees.codec(payload)
				if err != nil {
					return total, fmt.Errorf("decode stage %q at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
				}
			case stageBits:
				if err := decodeBitsStage(&tmp, params, payload); err != nil {
					return total, fmt.Errorf("%w: decode stage %q at offset %d (stage index %d): %w", ErrCorruptArchive, header.name, payloadOffset, i, err)
				}
			case stageChecksum:
				if err := decodeChecksumStage(&tmp, params, payload); err != nil {
					return total, fmt.Errorf("%w: decode stage %q at offset %d (stage index %d): %w", ErrCorruptArchive, header.name, payloadOffset, i, err)
				}
			}
			seenStages[header.name] = true

		default:
			skipOffset := total
			skipped, err := io.CopyN(io.Discard, r, int64(header.dataLen))
			total += skipped
			if err != nil {
				return total, fmt.Errorf("%w: skip unknown stage %q at offset %d (stage index %d): %w", ErrCorruptArchive, header.name, skipOffset, i, err)
			}
		}
	}

	for _, stageName := range []string{stageTree, stageBits} {
		if !seenStages[stageName] {
			return total, fmt.Errorf("%w: missing required stage %q", ErrCorruptArchive, stageName)
		}
	}
	tmp.Tree = treeCodec.tree
	tmp.Codes = treeCodec.codes
	if err := validateArchiveStructure(&tmp); err != nil {
		return total, fmt.Errorf("%w: invalid archive structure: %w", ErrCorruptArchive, err)
	}

	*a = tmp
	return total, nil
}
