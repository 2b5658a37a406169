package instruction

import "math/rand"

// maxForDepth is the deepest nesting of For loops the generator will
// produce; a would-be deeper For is emitted as an Add instead.
const maxForDepth = 3

var varNames = []string{"x", "y", "z", "counter", "sum", "temp", "result", "value"}

// weightedKinds repeats each kind in proportion to its generation
// weight, so a single uniform draw over this slice picks kinds with the
// relative weights Declare 15, Add 20, Sub 15, Print 20, Sleep 10,
// For 10, Read 15, Write 15 (out of a total of 120).
var weightedKinds = buildWeightedKinds([]struct {
	kind   Kind
	weight int
}{
	{Declare, 15},
	{Add, 20},
	{Sub, 15},
	{Print, 20},
	{Sleep, 10},
	{For, 10},
	{Read, 15},
	{Write, 15},
})

func buildWeightedKinds(pairs []struct {
	kind   Kind
	weight int
}) []Kind {
	var out []Kind
	for _, p := range pairs {
		for i := 0; i < p.weight; i++ {
			out = append(out, p.kind)
		}
	}
	return out
}

// Generator synthesizes programs for a named process with a given
// allocated memory size (used to bound Read/Write addresses).
type Generator struct {
	rng            *rand.Rand
	processName    string
	allocatedBytes uint64
	declared       map[string]bool
}

// NewGenerator builds a Generator drawing from rng (nil uses a new
// source seeded with 1).
func NewGenerator(rng *rand.Rand, processName string, allocatedBytes uint64) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Generator{
		rng:            rng,
		processName:    processName,
		allocatedBytes: allocatedBytes,
		declared:       map[string]bool{},
	}
}

// Generate produces count top-level instructions.
func (g *Generator) Generate(count int) []Instruction {
	out := make([]Instruction, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.next(0))
	}
	return out
}

func (g *Generator) pickKind() Kind {
	return weightedKinds[g.rng.Intn(len(weightedKinds))]
}

func (g *Generator) pickVar() string {
	return varNames[g.rng.Intn(len(varNames))]
}

func (g *Generator) next(depth int) Instruction {
	kind := g.pickKind()
	if kind == For && depth >= maxForDepth {
		kind = Add
	}
	return g.build(kind, depth)
}

func (g *Generator) build(kind Kind, depth int) Instruction {
	switch kind {
	case Declare:
		v := g.pickVar()
		g.declared[v] = true
		return Instruction{Kind: Declare, DeclVar: v, DeclValue: uint16(1 + g.rng.Intn(100))}

	case Add:
		dst := g.pickVar()
		g.declared[dst] = true
		return Instruction{Kind: Add, Dst: dst, SrcA: g.operand(), SrcB: g.operand()}

	case Sub:
		dst := g.pickVar()
		g.declared[dst] = true
		return Instruction{Kind: Sub, Dst: dst, SrcA: g.operand(), SrcB: g.operand()}

	case Print:
		msg := "Hello world from " + g.processName + "!"
		if len(g.declared) > 0 && g.rng.Intn(3) == 0 {
			return Instruction{Kind: Print, Message: msg, PrintVar: g.anyDeclared()}
		}
		return Instruction{Kind: Print, Message: msg}

	case Sleep:
		return Instruction{Kind: Sleep, SleepTicks: uint8(1 + g.rng.Intn(5))}

	case Read:
		return Instruction{Kind: Read, Address: g.alignedAddress()}

	case Write:
		return Instruction{Kind: Write, Address: g.alignedAddress(), WriteValue: Operand{Immediate: uint16(1 + g.rng.Intn(100))}}

	case For:
		repeats := 2 + g.rng.Intn(4) // [2,5]
		innerCount := 2
		body := make([]Instruction, 0, innerCount)
		for i := 0; i < innerCount; i++ {
			body = append(body, g.next(depth+1))
		}
		return Instruction{Kind: For, Body: body, Repeats: repeats}

	default:
		return Instruction{Kind: Add, Dst: "counter", SrcA: VarRef("counter"), SrcB: Imm(1)}
	}
}

func (g *Generator) operand() Operand {
	if g.rng.Intn(2) == 0 {
		return Imm(uint16(1 + g.rng.Intn(100)))
	}
	v := g.pickVar()
	g.declared[v] = true
	return VarRef(v)
}

func (g *Generator) anyDeclared() string {
	n := g.rng.Intn(len(g.declared))
	for v := range g.declared {
		if n == 0 {
			return v
		}
		n--
	}
	return ""
}

func (g *Generator) alignedAddress() uint32 {
	bound := g.allocatedBytes
	if bound < 2 {
		bound = 2
	}
	addr := uint32(g.rng.Int63n(int64(bound)))
	return (addr / 2) * 2
}
