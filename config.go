package shadercombo

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ShaderEntry is one #BEGIN..#END block of the input manifest, immutable
// once the store finishes loading.
type ShaderEntry struct {
	Name           string
	SourceFile     string
	Defines        []Define
	SkipExpression *Expression
	CommandPrefix  string
	CommandSuffix  string

	NumStatic  uint64
	NumDynamic uint64
	NumCombos  uint64

	CommandStart uint64
	CommandEnd   uint64

	gen        *ComboGenerator
	skipSource string
}

// Generator returns the entry's combo generator, built once at load time.
func (e *ShaderEntry) Generator() *ComboGenerator { return e.gen }

// FormatCommand writes the compiler-invocation line for one combo to b:
// the entry's prefix, the SHADERCOMBO macro carrying the combo-in-entry
// index in lowercase hex, one /D<var>=<value> token per define in
// declaration order, then the suffix and a trailing newline.
func (e *ShaderEntry) FormatCommand(c Combo, b *strings.Builder) {
	b.WriteString(e.CommandPrefix)
	b.WriteString(" /DSHADERCOMBO=")
	b.WriteString(formatHex(c.ComboIndex))
	for i, d := range e.Defines {
		b.WriteString(" /D")
		b.WriteString(d.Name)
		b.WriteByte('=')
		b.WriteString(formatInt(c.Values[i]))
	}
	b.WriteByte(' ')
	b.WriteString(e.CommandSuffix)
	b.WriteByte('\n')
}

// comboTemplate is a sampled command-index anchor: the command number
// command plus the (static, dynamic) sub-indices it decomposes to, cheap to
// advance forward by a small number of steps.
type comboTemplate struct {
	command uint64
	static  uint64
	dynamic uint64
}

// ConfigStore holds every shader entry and the global command-number
// mapping.
type ConfigStore struct {
	entries []*ShaderEntry
	byName  map[string]*ShaderEntry
	samples []comboTemplate // sorted ascending by command
}

// Entries returns every shader entry in configuration order.
func (s *ConfigStore) Entries() []*ShaderEntry { return s.entries }

// ByName looks up an entry by its unique name.
func (s *ConfigStore) ByName(name string) (*ShaderEntry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// TotalCommands is the size of the global command space, the half-open
// range [0, TotalCommands) addressed by command numbers.
func (s *ConfigStore) TotalCommands() uint64 {
	if len(s.entries) == 0 {
		return 0
	}
	last := s.entries[len(s.entries)-1]
	return last.CommandEnd
}

// EntryForCommand returns the entry owning global command number q and q's
// offset within that entry's own combo space.
func (s *ConfigStore) EntryForCommand(q uint64) (*ShaderEntry, uint64, bool) {
	lo, hi := 0, len(s.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.entries[mid].CommandEnd <= q {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(s.entries) {
		return nil, 0, false
	}
	e := s.entries[lo]
	if q < e.CommandStart {
		return nil, 0, false
	}
	return e, q - e.CommandStart, true
}

// ComboAtCommand resolves a global command number directly to a Combo,
// using the nearest sampled template at or before q and advancing the
// handful of remaining steps rather than recomputing from scratch — this
// is what bounds random-access cost regardless of shader size.
func (s *ConfigStore) ComboAtCommand(q uint64) (*ShaderEntry, Combo, bool) {
	e, local, ok := s.EntryForCommand(q)
	if !ok {
		return nil, Combo{}, false
	}
	t := s.nearestSample(q)
	if t == nil {
		return e, e.gen.ComboAt(local), true
	}
	remaining := q - t.command
	staticIdx, dynamicIdx := t.static, t.dynamic
	dynCount := e.gen.NumDynamicCombos()
	dynamicIdx += remaining
	staticIdx += dynamicIdx / dynCount
	dynamicIdx %= dynCount
	return e, e.gen.ComboFromParts(staticIdx, dynamicIdx), true
}

// nearestSample returns the sample with the greatest command <= q, or nil
// if q precedes every sample (which cannot happen once buildSamples has run
// since every entry's CommandStart is itself sampled).
func (s *ConfigStore) nearestSample(q uint64) *comboTemplate {
	lo, hi := 0, len(s.samples)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.samples[mid].command <= q {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return nil
	}
	return &s.samples[lo-1]
}

// sampleStride is the sampling spacing: one template roughly every
// max(1000, numCombos/500) commands, always including command_start.
func sampleStride(numCombos uint64) uint64 {
	stride := numCombos / 500
	if stride < 1000 {
		stride = 1000
	}
	return stride
}

// IncludeCache is the pre-populated name -> bytes file cache handed to the
// compiler adapter in every CompileRequest for the back end's own include
// resolution. The source hasher does not use it; it reads through a
// FileReader.
type IncludeCache struct {
	files map[string][]byte
}

// NewIncludeCache builds an empty cache.
func NewIncludeCache() *IncludeCache {
	return &IncludeCache{files: make(map[string][]byte)}
}

// Put registers a file's contents under name.
func (c *IncludeCache) Put(name string, data []byte) {
	c.files[name] = data
}

// Get returns a file's contents and whether it was present.
func (c *IncludeCache) Get(name string) ([]byte, bool) {
	b, ok := c.files[name]
	return b, ok
}

// LoadIncludeManifest reads a sibling uniquefilestocopy.txt style listing,
// one path per line, and returns the paths worth ingesting into a cache
// (the caller is responsible for reading file contents; this only parses
// the listing itself).
func LoadIncludeManifest(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// configSection tracks which block of a #BEGIN..#END entry is being parsed.
type configSection int

const (
	secNone configSection = iota
	secSource
	secDefinesS
	secDefinesD
	secSkip
	secCommandPrefix
	secCommandSuffix
)

// LoadConfig parses a shader manifest into a ConfigStore. Re-entry with a
// #BEGIN name that was already loaded is silently skipped, so duplicate
// entries in hand-edited manifests keep their first definition.
func LoadConfig(r io.Reader) (*ConfigStore, error) {
	store := &ConfigStore{byName: make(map[string]*ShaderEntry)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	var cur *ShaderEntry
	var section configSection

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#BEGIN "):
			name := strings.TrimSpace(line[len("#BEGIN "):])
			if _, exists := store.byName[name]; exists {
				cur = nil
				section = secNone
				continue
			}
			cur = &ShaderEntry{Name: name}
			section = secSource

		case line == "#DEFINES-S":
			if cur == nil {
				continue
			}
			section = secDefinesS

		case line == "#DEFINES-D":
			if cur == nil {
				continue
			}
			section = secDefinesD

		case line == "#SKIP":
			if cur == nil {
				continue
			}
			section = secSkip

		case line == "#COMMAND":
			if cur == nil {
				continue
			}
			section = secCommandPrefix

		case line == "#END":
			if cur == nil {
				section = secNone
				continue
			}
			buildEntryGenerator(cur)
			store.entries = append(store.entries, cur)
			store.byName[cur.Name] = cur
			cur = nil
			section = secNone

		default:
			if cur == nil {
				continue
			}
			switch section {
			case secSource:
				cur.SourceFile = line
				section = secNone
			case secDefinesS, secDefinesD:
				d, err := parseDefineLine(lineNo, line, section == secDefinesS)
				if err != nil {
					return nil, err
				}
				cur.Defines = append(cur.Defines, d)
			case secSkip:
				cur.skipSource = line
				section = secNone
			case secCommandPrefix:
				cur.CommandPrefix = line
				section = secCommandSuffix
			case secCommandSuffix:
				cur.CommandSuffix = line
				section = secNone
			default:
				return nil, &ConfigParseError{Line: lineNo, Message: "unexpected line outside entry sections"}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, &ConfigParseError{Line: lineNo, Message: fmt.Sprintf("entry %q missing #END", cur.Name)}
	}

	assignCommandRanges(store)
	buildSamples(store)
	return store, nil
}

// parseDefineLine parses "<var> = <min> .. <max>".
func parseDefineLine(lineNo int, line string, static bool) (Define, error) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return Define{}, &ConfigParseError{Line: lineNo, Message: "define missing '='"}
	}
	name := strings.TrimSpace(line[:eq])
	rest := strings.TrimSpace(line[eq+1:])
	dots := strings.Index(rest, "..")
	if dots < 0 {
		return Define{}, &ConfigParseError{Line: lineNo, Message: "define missing '..' range"}
	}
	minStr := strings.TrimSpace(rest[:dots])
	maxStr := strings.TrimSpace(rest[dots+2:])
	min, err := strconv.ParseInt(minStr, 10, 64)
	if err != nil {
		return Define{}, &ConfigParseError{Line: lineNo, Message: "bad define min: " + err.Error()}
	}
	max, err := strconv.ParseInt(maxStr, 10, 64)
	if err != nil {
		return Define{}, &ConfigParseError{Line: lineNo, Message: "bad define max: " + err.Error()}
	}
	if min > max {
		return Define{}, &ConfigParseError{Line: lineNo, Message: "define min greater than max"}
	}
	return Define{Name: name, Min: min, Max: max, Static: static}, nil
}

// buildEntryGenerator builds the combo generator, derived counts, and
// parsed skip expression for one freshly parsed entry. Command-range
// assignment happens later, in assignCommandRanges, once every entry's
// NumCombos is known.
func buildEntryGenerator(e *ShaderEntry) {
	e.gen = NewComboGenerator(e.Defines)
	e.NumStatic = e.gen.NumStaticCombos()
	e.NumDynamic = e.gen.NumDynamicCombos()
	e.NumCombos = e.gen.NumCombos()
	e.SkipExpression = ParseExpression(e.skipSource, defaultEnv{g: e.gen})
}

// assignCommandRanges orders entries by ascending NumCombos (a stable sort,
// so entries tied on size keep their manifest order) and then assigns each
// its slice of the global command space in that order, letting small
// shaders finish and get written out earlier in a run rather than waiting
// behind one very large shader. Configuration order for the global command
// space is whatever order entries end up in after this sort.
func assignCommandRanges(store *ConfigStore) {
	sort.SliceStable(store.entries, func(i, j int) bool {
		return store.entries[i].NumCombos < store.entries[j].NumCombos
	})
	var cmdStart uint64
	for _, e := range store.entries {
		e.CommandStart = cmdStart
		e.CommandEnd = cmdStart + e.NumCombos
		cmdStart = e.CommandEnd
	}
}

// buildSamples populates the sorted command-index template table: one
// sample every sampleStride commands, plus always at command_start, across
// every entry.
func buildSamples(store *ConfigStore) {
	for _, e := range store.entries {
		if e.NumCombos == 0 {
			continue
		}
		stride := sampleStride(e.NumCombos)
		dyn := e.NumDynamic
		if dyn == 0 {
			continue
		}
		for local := uint64(0); local < e.NumCombos; local += stride {
			store.samples = append(store.samples, comboTemplate{
				command: e.CommandStart + local,
				static:  local / dyn,
				dynamic: local % dyn,
			})
		}
	}
}
