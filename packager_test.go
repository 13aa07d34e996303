package shadercombo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// decodePacked parses a packed payload back into its (dynamic id, bytes)
// blocks, used both as a sanity check here and for the round-trip checks
// in writer_test.go.
func decodePacked(t *testing.T, payload []byte) []ByteCodeBlock {
	t.Helper()
	var blocks []ByteCodeBlock
	pos := 0
	for {
		require.GreaterOrEqual(t, len(payload)-pos, 4)
		flagSize := binary.LittleEndian.Uint32(payload[pos:])
		pos += 4
		if flagSize == 0xFFFFFFFF {
			break
		}
		kind := flagSize & blockKindMask
		size := int(flagSize & blockLengthMask)
		chunk := payload[pos : pos+size]
		pos += size

		var scratch []byte
		switch kind {
		case blockKindUncompressed:
			scratch = chunk
		case blockKindLZMA:
			scratch = decompressLZMAForTest(t, chunk)
		default:
			t.Fatalf("unknown block kind %x", kind)
		}

		sp := 0
		for sp < len(scratch) {
			id := binary.LittleEndian.Uint32(scratch[sp:])
			sp += 4
			n := binary.LittleEndian.Uint32(scratch[sp:])
			sp += 4
			data := append([]byte(nil), scratch[sp:sp+int(n)]...)
			sp += int(n)
			blocks = append(blocks, ByteCodeBlock{DynamicComboID: uint64(id), Bytes: data})
		}
	}
	return blocks
}

func TestPackStaticComboSortsAndTerminates(t *testing.T) {
	blocks := []ByteCodeBlock{
		{DynamicComboID: 2, Bytes: []byte{2}},
		{DynamicComboID: 0, Bytes: []byte{0}},
		{DynamicComboID: 1, Bytes: []byte{1}},
	}
	payload := PackStaticCombo(blocks)
	require.True(t, len(payload) >= 4)
	sentinel := binary.LittleEndian.Uint32(payload[len(payload)-4:])
	require.EqualValues(t, 0xFFFFFFFF, sentinel)

	decoded := decodePacked(t, payload)
	require.Len(t, decoded, 3)
	for i, b := range decoded {
		require.EqualValues(t, i, b.DynamicComboID)
		require.Equal(t, []byte{byte(i)}, b.Bytes)
	}
}

func TestPackStaticComboEmpty(t *testing.T) {
	payload := PackStaticCombo(nil)
	require.Len(t, payload, 4)
	require.EqualValues(t, 0xFFFFFFFF, binary.LittleEndian.Uint32(payload))
}

// TestPackStaticComboFlushesAtCap exercises the block-size bound: no
// uncompressed scratch buffer fed to LZMA may exceed MaxUnpackedBlockSize.
func TestPackStaticComboFlushesAtCap(t *testing.T) {
	big := make([]byte, MaxUnpackedBlockSize-16)
	blocks := []ByteCodeBlock{
		{DynamicComboID: 0, Bytes: big},
		{DynamicComboID: 1, Bytes: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}
	payload := PackStaticCombo(blocks)
	decoded := decodePacked(t, payload)
	require.Len(t, decoded, 2)
	require.Equal(t, big, decoded[0].Bytes)
}

func TestCompressLZMARoundTrips(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated. " +
		"the quick brown fox jumps over the lazy dog, repeated.")
	compressed, ok := compressLZMA(data)
	require.True(t, ok)
	require.EqualValues(t, lzmaMagic, binary.LittleEndian.Uint32(compressed))
	got := decompressLZMAForTest(t, compressed)
	require.Equal(t, data, got)
}
