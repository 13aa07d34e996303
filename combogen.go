package shadercombo

// ComboGenerator holds the ordered define list for one shader entry and
// provides O(1) random access into its combo space via mixed-radix
// decomposition. Defines are stored in the order they were added;
// static defines and dynamic defines are tracked separately so that a combo
// index can be split into its static and dynamic components without a scan.
type ComboGenerator struct {
	defines       []Define
	staticIdx     []int
	dynamicIdx    []int
	staticStride  []uint64
	dynamicStride []uint64
	staticCount   uint64
	dynamicCount  uint64
}

// NewComboGenerator builds a generator over defines, preserving their order.
func NewComboGenerator(defines []Define) *ComboGenerator {
	g := &ComboGenerator{defines: append([]Define(nil), defines...)}
	for i, d := range defines {
		if d.Static {
			g.staticIdx = append(g.staticIdx, i)
		} else {
			g.dynamicIdx = append(g.dynamicIdx, i)
		}
	}
	g.staticStride = stridesFor(g.defines, g.staticIdx)
	g.dynamicStride = stridesFor(g.defines, g.dynamicIdx)
	g.staticCount = product(g.defines, g.staticIdx)
	g.dynamicCount = product(g.defines, g.dynamicIdx)
	return g
}

func product(defines []Define, idx []int) uint64 {
	n := uint64(1)
	for _, i := range idx {
		n *= defines[i].Cardinality()
	}
	return n
}

// stridesFor computes, for each entry in idx (in the order given), the
// number of combos one increment of that define advances the flattened
// index by — i.e. the product of the cardinalities of all defines in idx
// that come before it. The first-declared variable is the
// least-significant digit, so it gets stride 1 and later-declared
// variables get progressively larger strides. This is the classic
// mixed-radix stride table.
func stridesFor(defines []Define, idx []int) []uint64 {
	strides := make([]uint64, len(idx))
	stride := uint64(1)
	for i := 0; i < len(idx); i++ {
		strides[i] = stride
		stride *= defines[idx[i]].Cardinality()
	}
	return strides
}

// NumCombos returns the total combo count: the product of every define's
// cardinality (static and dynamic together).
func (g *ComboGenerator) NumCombos() uint64 {
	return g.staticCount * g.dynamicCount
}

// NumStaticCombos returns the product of only the static defines'
// cardinalities.
func (g *ComboGenerator) NumStaticCombos() uint64 {
	return g.staticCount
}

// NumDynamicCombos returns the product of only the dynamic defines'
// cardinalities.
func (g *ComboGenerator) NumDynamicCombos() uint64 {
	return g.dynamicCount
}

// Defines returns the generator's define list in declaration order.
func (g *ComboGenerator) Defines() []Define {
	return g.defines
}

// Combo is a single fully-resolved point in the combo space: the flattened
// combo-in-entry index in [0, NumCombos), its static and dynamic
// sub-indices, and the concrete value assigned to every define.
type Combo struct {
	ComboIndex   uint64
	StaticIndex  uint64
	DynamicIndex uint64
	Values       []int64
}

// ComboAt decomposes a combo-in-entry index into a full assignment. The
// dynamic defines vary fastest: comboIndex = staticIndex*NumDynamicCombos()
// + dynamicIndex, as if the dynamic loop were nested inside the static
// one.
func (g *ComboGenerator) ComboAt(comboIndex uint64) Combo {
	staticIndex := comboIndex / g.dynamicCount
	dynamicIndex := comboIndex % g.dynamicCount
	return g.comboFromParts(staticIndex, dynamicIndex)
}

// ComboFromParts builds a Combo directly from its static and dynamic
// sub-indices, skipping the division ComboAt needs when the caller already
// has both parts (e.g. ConfigStore.ComboAtCommand, which advances a sampled
// static/dynamic pair).
func (g *ComboGenerator) ComboFromParts(staticIndex, dynamicIndex uint64) Combo {
	return g.comboFromParts(staticIndex, dynamicIndex)
}

func (g *ComboGenerator) comboFromParts(staticIndex, dynamicIndex uint64) Combo {
	values := make([]int64, len(g.defines))
	decompose(g.defines, g.staticIdx, g.staticStride, staticIndex, values)
	decompose(g.defines, g.dynamicIdx, g.dynamicStride, dynamicIndex, values)
	return Combo{
		ComboIndex:   staticIndex*g.dynamicCount + dynamicIndex,
		StaticIndex:  staticIndex,
		DynamicIndex: dynamicIndex,
		Values:       values,
	}
}

func decompose(defines []Define, idx []int, strides []uint64, flat uint64, out []int64) {
	for i, di := range idx {
		card := defines[di].Cardinality()
		digit := (flat / strides[i]) % card
		out[di] = defines[di].Min + int64(digit)
	}
}

// comboEnv adapts a Combo's resolved values to the Env interface expected
// by Expression.Evaluate, resolving a $name reference by its position in
// the generator's define list. An undeclared name resolves to slot -1,
// which Expression evaluates as 0.
type comboEnv struct {
	g      *ComboGenerator
	values []int64
}

func (g *ComboGenerator) envFor(c Combo) comboEnv {
	return comboEnv{g: g, values: c.Values}
}

func (e comboEnv) Slot(name string) int {
	for i, d := range e.g.defines {
		if d.Name == name {
			return i
		}
	}
	return -1
}

func (e comboEnv) Value(slot int) int64 {
	if slot < 0 || slot >= len(e.values) {
		return 0
	}
	return e.values[slot]
}

// defaultEnv resolves every define to the value 1. It is used when a skip
// expression is parsed at configuration time, before any concrete combo
// assignment exists (e.g. validating an entry's own skip expression for
// syntax errors ahead of enumeration).
type defaultEnv struct {
	g *ComboGenerator
}

func (e defaultEnv) Slot(name string) int {
	for i, d := range e.g.defines {
		if d.Name == name {
			return i
		}
	}
	return -1
}

func (defaultEnv) Value(int) int64 { return 1 }
