package shadercombo

import (
	"hash/crc32"
	"sort"
)

// crc32Of is the IEEE CRC32 of a compiled bytecode blob, kept on each
// in-memory block. PackStaticCombo does not write it into the packed
// payload.
func crc32Of(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ByteCodeBlock is one compiled dynamic combo awaiting packaging.
type ByteCodeBlock struct {
	DynamicComboID uint64
	CRC32          uint32
	Bytes          []byte
}

// StaticCombo accumulates a static combo's dynamic blocks until it is
// sealed, at which point PackedPayload holds the compressed stream and
// Blocks is cleared; at most one of the two states is live at a time.
type StaticCombo struct {
	StaticComboID uint64
	Blocks        []ByteCodeBlock
	PackedPayload []byte

	// packing marks a combo whose blocks have been handed to a packer that
	// is compressing them outside the lock; it keeps a second packer from
	// claiming the same combo before SealStatic lands.
	packing bool
}

// Sealed reports whether this static combo has already been packaged.
func (s *StaticCombo) Sealed() bool { return s.PackedPayload != nil }

// perShaderTable maps a static combo id to its accumulating StaticCombo.
// Kept as a plain map (not swiss.Map): per-shader tables are typically a
// few thousand entries at most and are always accessed under the engine's
// single lock, so the more elaborate open-addressing map buys nothing here
// — it earns its keep in the dedup index instead, where lookups are
// sharded by content hash across potentially the whole static-combo space.
type perShaderTable map[uint64]*StaticCombo

// ByteCodeStore is a two-level table: shader name to per-shader map, then
// static combo id to StaticCombo. It is a plain, unsynchronized data
// structure: locking belongs to the work engine's single mutex, alongside
// the engine cursor and the diagnostic tables, rather than to the store
// itself — the same critical section that advances the packaging frontier
// also needs to read and mutate this table, so a second independent lock
// here would only invite a second lock order to reason about.
type ByteCodeStore struct {
	shaders map[string]perShaderTable
	errored map[string]bool
}

// NewByteCodeStore builds an empty store.
func NewByteCodeStore() *ByteCodeStore {
	return &ByteCodeStore{
		shaders: make(map[string]perShaderTable),
		errored: make(map[string]bool),
	}
}

// AddDynamicBlock appends a compiled block to the named shader's static
// combo, creating either level of the table on first insertion.
func (s *ByteCodeStore) AddDynamicBlock(name string, staticID, dynamicID uint64, bytes []byte, crc uint32) {
	table, ok := s.shaders[name]
	if !ok {
		table = make(perShaderTable)
		s.shaders[name] = table
	}
	sc, ok := table[staticID]
	if !ok {
		sc = &StaticCombo{StaticComboID: staticID}
		table[staticID] = sc
	}
	sc.Blocks = append(sc.Blocks, ByteCodeBlock{DynamicComboID: dynamicID, CRC32: crc, Bytes: bytes})
}

// SealStatic replaces a static combo's accumulated blocks with its packed
// payload.
func (s *ByteCodeStore) SealStatic(name string, staticID uint64, packed []byte) {
	table, ok := s.shaders[name]
	if !ok {
		return
	}
	sc, ok := table[staticID]
	if !ok {
		return
	}
	sc.Blocks = nil
	sc.PackedPayload = packed
}

// StaticCombo returns the named shader's entry for staticID, if present.
func (s *ByteCodeStore) StaticCombo(name string, staticID uint64) (*StaticCombo, bool) {
	table, ok := s.shaders[name]
	if !ok {
		return nil, false
	}
	sc, ok := table[staticID]
	return sc, ok
}

// TakeShader transfers ownership of a shader's per-static table out of the
// store for writing, removing it from the store.
func (s *ByteCodeStore) TakeShader(name string) (perShaderTable, bool) {
	table, ok := s.shaders[name]
	if !ok {
		return nil, false
	}
	delete(s.shaders, name)
	return table, true
}

// MarkError flags a shader as having had at least one failed combo.
func (s *ByteCodeStore) MarkError(name string) {
	s.errored[name] = true
}

// HadError reports whether MarkError was ever called for name.
func (s *ByteCodeStore) HadError(name string) bool {
	return s.errored[name]
}

// sortedStaticIDs returns table's keys in ascending order, used by the
// packaging barrier and the output writer to walk static combos in
// directory order.
func (t perShaderTable) sortedStaticIDs() []uint64 {
	ids := make([]uint64, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DiagnosticEntry records one deduped compile-listing message: the exact
// message text, the first offending command number, and how many times it
// recurred.
type DiagnosticEntry struct {
	Message      string
	FirstCommand uint64
	Count        int
	Severity     Severity
}

// Severity classifies a diagnostic entry; Go has no warning/error
// distinction in its standard error type, so the listing table carries it
// explicitly.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// DiagnosticTable dedupes compile listings by exact message text, so a
// warning repeated across thousands of combos prints once with a count.
type DiagnosticTable struct {
	byMessage map[string]*DiagnosticEntry
	order     []string
}

// NewDiagnosticTable builds an empty table.
func NewDiagnosticTable() *DiagnosticTable {
	return &DiagnosticTable{byMessage: make(map[string]*DiagnosticEntry)}
}

// Record adds an occurrence of message at commandNumber, creating a new
// entry on first sight and incrementing Count on repeats.
func (t *DiagnosticTable) Record(message string, commandNumber uint64, severity Severity) {
	if e, ok := t.byMessage[message]; ok {
		e.Count++
		return
	}
	e := &DiagnosticEntry{Message: message, FirstCommand: commandNumber, Count: 1, Severity: severity}
	t.byMessage[message] = e
	t.order = append(t.order, message)
}

// Entries returns every recorded diagnostic in first-seen order.
func (t *DiagnosticTable) Entries() []*DiagnosticEntry {
	entries := make([]*DiagnosticEntry, 0, len(t.order))
	for _, msg := range t.order {
		entries = append(entries, t.byMessage[msg])
	}
	return entries
}
