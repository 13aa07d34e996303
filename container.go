package shadercombo

import (
	"bytes"
	"encoding/binary"
)

// ShaderVCSVersion is the fixed container format version. Format history:
// version 2 added centroid masks, 3 added static combo ids that differ
// from the ordinal position, 4 switched to LZMA from bzip2, 5 added the
// dynamic-combos-per-static header field, and 6 added source CRC
// verification — kept as a single constant since the format does not
// evolve here.
const ShaderVCSVersion uint32 = 6

const containerHeaderSize = 28

// ContainerFlag is the header's flag word. No bits are currently defined
// by this module; the field is always written zero and exists so readers
// of older tooling see a stable layout.
type ContainerFlag uint32

// ContainerHeader is the 28-byte fixed header at the front of a .vcs file.
type ContainerHeader struct {
	Version          uint32
	TotalCombos      uint32
	DynamicPerStatic uint32
	Flags            ContainerFlag
	CentroidMask     uint32
	StaticDirCount   uint32
	SourceCRC32      uint32
}

// StaticDirRecord is one static-combo directory entry.
type StaticDirRecord struct {
	StaticComboID uint32
	FileOffset    uint32
}

// AliasRecord maps an aliased static combo id to its canonical id.
type AliasRecord struct {
	AliasID     uint32
	CanonicalID uint32
}

const staticDirSentinel = 0xFFFFFFFF

// WriteContainer serializes the full container layout: header, static
// directory (with trailing sentinel), alias count and table, then payloads
// in directory order.
func WriteContainer(header ContainerHeader, dir []StaticDirRecord, aliases []AliasRecord, payloads [][]byte) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, header)

	for _, rec := range dir {
		writeU32(&buf, rec.StaticComboID)
		writeU32(&buf, rec.FileOffset)
	}

	dirAndAliasBytes := (len(dir)+1)*8 + 4 + len(aliases)*8
	payloadTotal := 0
	for _, p := range payloads {
		payloadTotal += len(p)
	}
	endOfFile := containerHeaderSize + dirAndAliasBytes + payloadTotal
	writeU32(&buf, staticDirSentinel)
	writeU32(&buf, uint32(endOfFile))

	writeU32(&buf, uint32(len(aliases)))
	for _, a := range aliases {
		writeU32(&buf, a.AliasID)
		writeU32(&buf, a.CanonicalID)
	}

	for _, p := range payloads {
		buf.Write(p)
	}

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, h ContainerHeader) {
	writeU32(buf, h.Version)
	writeU32(buf, h.TotalCombos)
	writeU32(buf, h.DynamicPerStatic)
	writeU32(buf, uint32(h.Flags))
	writeU32(buf, h.CentroidMask)
	writeU32(buf, h.StaticDirCount)
	writeU32(buf, h.SourceCRC32)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// ReadContainer parses a container file back into its structural pieces,
// used by the round-trip tests and any future consumer.
func ReadContainer(data []byte) (ContainerHeader, []StaticDirRecord, []AliasRecord, error) {
	if len(data) < containerHeaderSize {
		return ContainerHeader{}, nil, nil, &IOError{Shader: "", Err: errShortContainer}
	}
	r := bytes.NewReader(data)
	var h ContainerHeader
	h.Version = readU32(r)
	h.TotalCombos = readU32(r)
	h.DynamicPerStatic = readU32(r)
	h.Flags = ContainerFlag(readU32(r))
	h.CentroidMask = readU32(r)
	h.StaticDirCount = readU32(r)
	h.SourceCRC32 = readU32(r)

	var dir []StaticDirRecord
	for i := uint32(0); i < h.StaticDirCount; i++ {
		id := readU32(r)
		off := readU32(r)
		if id == staticDirSentinel {
			break
		}
		dir = append(dir, StaticDirRecord{StaticComboID: id, FileOffset: off})
	}

	aliasCount := readU32(r)
	aliases := make([]AliasRecord, 0, aliasCount)
	for i := uint32(0); i < aliasCount; i++ {
		aliases = append(aliases, AliasRecord{AliasID: readU32(r), CanonicalID: readU32(r)})
	}

	return h, dir, aliases, nil
}

func readU32(r *bytes.Reader) uint32 {
	var b [4]byte
	r.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

var errShortContainer = &shortContainerError{}

type shortContainerError struct{}

func (*shortContainerError) Error() string { return "container shorter than header" }
