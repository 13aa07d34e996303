package shadercombo

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz/lzma"
)

// decompressLZMAForTest reverses compressLZMA's framing (magic,
// actual_size, lzma_size, 5 properties bytes, stream) back into the
// classic LZMA1 container ulikunitz/xz/lzma.NewReader expects (5
// properties bytes + 8-byte little-endian uncompressed size + stream),
// then decodes it. Used by the packager and round-trip tests to verify
// what the packager wrote decompresses back to the original bytes.
func decompressLZMAForTest(t *testing.T, framed []byte) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(framed), 13)
	magic := binary.LittleEndian.Uint32(framed)
	require.EqualValues(t, lzmaMagic, magic)
	actualSize := binary.LittleEndian.Uint32(framed[4:])
	lzmaSize := binary.LittleEndian.Uint32(framed[8:])
	properties := framed[12:17]
	stream := framed[17 : 17+lzmaSize]

	var classic bytes.Buffer
	classic.Write(properties)
	var sizeField [8]byte
	binary.LittleEndian.PutUint64(sizeField[:], uint64(actualSize))
	classic.Write(sizeField[:])
	classic.Write(stream)

	r, err := lzma.NewReader(&classic)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}
