package shadercombo

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/ulikunitz/xz/lzma"
)

// MaxUnpackedBlockSize is the uncompressed scratch-buffer cap: when adding
// the next dynamic block would exceed it, the buffer is flushed first.
const MaxUnpackedBlockSize = 1 << 17

const lzmaMagic = 0x414D5A4C // 'LZMA', little-endian as stored

// block-kind tags in the top two bits of each block's flag word.
const (
	blockKindUncompressed uint32 = 0x2 << 30 // "10"
	blockKindLZMA         uint32 = 0x1 << 30 // "01"
	blockKindMask         uint32 = 0x3 << 30
	blockLengthMask       uint32 = 0x3FFFFFFF
)

// PackStaticCombo sorts the static combo's dynamic blocks, chunks them
// into MaxUnpackedBlockSize-bounded scratch buffers, and emits each as a
// flagged, optionally LZMA-compressed block, terminated by the sentinel.
// The returned bytes are the packed payload to hand to
// ByteCodeStore.SealStatic.
func PackStaticCombo(blocks []ByteCodeBlock) []byte {
	sorted := append([]ByteCodeBlock(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DynamicComboID < sorted[j].DynamicComboID })

	var out bytes.Buffer
	var scratch bytes.Buffer

	flush := func() {
		if scratch.Len() == 0 {
			return
		}
		emitFlaggedBlock(&out, scratch.Bytes())
		scratch.Reset()
	}

	for _, b := range sorted {
		entryLen := 4 + 4 + len(b.Bytes)
		if scratch.Len() > 0 && scratch.Len()+entryLen > MaxUnpackedBlockSize {
			flush()
		}
		writeUint32(&scratch, uint32(b.DynamicComboID))
		writeUint32(&scratch, uint32(len(b.Bytes)))
		scratch.Write(b.Bytes)
	}
	flush()

	writeUint32(&out, 0xFFFFFFFF)
	return out.Bytes()
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

// emitFlaggedBlock compresses scratch with LZMA and appends the flagged
// block to out, falling back to an uncompressed block (flag "10") if
// compression fails or yields no saving — a compression failure is never
// fatal, only a degraded encoding choice.
func emitFlaggedBlock(out *bytes.Buffer, scratch []byte) {
	compressed, ok := compressLZMA(scratch)
	if !ok || len(compressed) >= len(scratch) {
		writeUint32(out, blockKindUncompressed|(uint32(len(scratch))&blockLengthMask))
		out.Write(scratch)
		return
	}
	writeUint32(out, blockKindLZMA|(uint32(len(compressed))&blockLengthMask))
	out.Write(compressed)
}

// compressLZMA produces the header-prefixed stream: magic 'LZMA', u32
// actual_size, u32 lzma_size, 5 bytes of LZMA properties, then the raw
// LZMA1 compressed stream. The 5 properties
// bytes are lifted from the first 5 bytes of the classic LZMA1 stream
// ulikunitz/xz/lzma.Writer emits (1 byte of encoded lc/lp/pb, 4 bytes
// little-endian dictionary size); the library's own redundant 8-byte
// uncompressed-size field is dropped since this format carries actual_size
// itself.
func compressLZMA(data []byte) ([]byte, bool) {
	var raw bytes.Buffer
	cfg := lzma.WriterConfig{Size: int64(len(data))}
	w, err := cfg.NewWriter(&raw)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}

	classic := raw.Bytes()
	if len(classic) < 13 {
		return nil, false
	}
	properties := classic[:5]
	stream := classic[13:]

	var framed bytes.Buffer
	writeUint32(&framed, lzmaMagic)
	writeUint32(&framed, uint32(len(data)))
	writeUint32(&framed, uint32(len(stream)))
	framed.Write(properties)
	framed.Write(stream)
	return framed.Bytes(), true
}
