package shadercombo

import (
	"bytes"
	"hash/crc32"
	"os"
	"sort"

	"github.com/dolthub/swiss"
)

// FileWriter abstracts the destination filesystem so the writer can be
// exercised without touching disk.
type FileWriter interface {
	WriteFile(path string, data []byte) error
	Remove(path string) error
}

// OSFileWriter is the real-filesystem FileWriter, used by the CLI front
// end.
type OSFileWriter struct{}

func (OSFileWriter) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (OSFileWriter) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// WriteShader emits one shader entry's container: dedup its sealed static
// combos, compute canonical/alias tables, and write the file at path. On a
// shader-wide compile error it instead deletes any existing file at path
// and writes nothing.
func WriteShader(w FileWriter, path string, entry *ShaderEntry, table perShaderTable, hadError bool, sourceCRC uint32) (staticCount, aliasCount int, err error) {
	if hadError {
		return 0, 0, w.Remove(path)
	}

	ids := table.sortedStaticIDs()

	// crc-mod-73 bucket -> member static combo ids, the dedup pre-filter.
	buckets := swiss.NewMap[uint32, []uint64](73)
	var canonical []uint64
	var aliasRecs []AliasRecord

	for _, id := range ids {
		sc := table[id]
		if sc.PackedPayload == nil {
			continue
		}
		bucket := crc32.ChecksumIEEE(sc.PackedPayload) % 73

		members, _ := buckets.Get(bucket)
		match := uint64(0)
		found := false
		for _, m := range members {
			if bytes.Equal(table[m].PackedPayload, sc.PackedPayload) {
				match = m
				found = true
				break
			}
		}
		if found {
			aliasRecs = append(aliasRecs, AliasRecord{AliasID: uint32(id), CanonicalID: uint32(match)})
			continue
		}

		buckets.Put(bucket, append(members, id))
		canonical = append(canonical, id)
	}

	sort.Slice(aliasRecs, func(i, j int) bool { return aliasRecs[i].AliasID < aliasRecs[j].AliasID })

	dir := make([]StaticDirRecord, len(canonical))
	payloads := make([][]byte, len(canonical))
	offset := uint32(containerHeaderSize + (len(canonical)+1)*8 + 4 + len(aliasRecs)*8)
	for i, id := range canonical {
		payload := table[id].PackedPayload
		dir[i] = StaticDirRecord{StaticComboID: uint32(id), FileOffset: offset}
		payloads[i] = payload
		offset += uint32(len(payload))
	}

	header := ContainerHeader{
		Version:          ShaderVCSVersion,
		TotalCombos:      uint32(entry.NumCombos),
		DynamicPerStatic: uint32(entry.NumDynamic),
		StaticDirCount:   uint32(len(canonical) + 1),
		SourceCRC32:      sourceCRC,
	}

	data := WriteContainer(header, dir, aliasRecs, payloads)
	if err := w.WriteFile(path, data); err != nil {
		return 0, 0, err
	}
	return len(canonical), len(aliasRecs), nil
}
