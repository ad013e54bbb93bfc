package z80

// handler executes an instruction whose opcode bytes up to the table index
// have been fetched, and returns its T-states.
type handler func(e *Executor) int

// Executor is the built-in InstructionExecutor implementing the documented
// Z80 instruction set plus the commonly used undocumented opcodes.
type Executor struct {
	agent ExecutionAgent
	r     *Registers

	// index is IX or IY while a DD or FD prefixed instruction executes
	index Register16

	unsupportedED func(opcode byte) int
}

func NewExecutor() *Executor {
	return &Executor{
		index:         RegisterIX,
		unsupportedED: func(opcode byte) int { return 8 },
	}
}

func (e *Executor) SetAgent(agent ExecutionAgent) {
	e.agent = agent
	e.r = agent.Registers()
}

// SetUnsupportedEDHandler replaces the handling of undefined ED opcodes,
// which by default execute as 8 T-state NOPs. fn is called after the fetch
// has been signalled finished, so it may access memory and ports.
func (e *Executor) SetUnsupportedEDHandler(fn func(opcode byte) int) {
	if fn == nil {
		fn = func(opcode byte) int { return 8 }
	}
	e.unsupportedED = fn
}

func (e *Executor) Execute(opcode byte) int {
	switch opcode {
	case 0xCB:
		e.r.incrementR(2)
		return cbOps[e.fetch()](e)
	case 0xDD:
		return e.executeIndexed(RegisterIX)
	case 0xFD:
		return e.executeIndexed(RegisterIY)
	case 0xED:
		e.r.incrementR(2)
		return e.executeED(e.fetch())
	default:
		e.r.incrementR(1)
		return baseOps[opcode](e)
	}
}

func (e *Executor) executeIndexed(index Register16) int {
	next := e.agent.PeekNextOpcode()
	switch next {
	case 0xDD, 0xFD, 0xED:
		// the prefix is ignored, the next byte starts a new instruction
		e.r.incrementR(1)
		e.done()
		return 4
	case 0xCB:
		e.r.incrementR(2)
		e.fetch()
		address := offsetAddress(e.r.Read16(index), int8(e.fetch()))
		opcode := e.fetch()
		e.done()
		return e.executeIndexedCB(opcode, address)
	}

	e.r.incrementR(2)
	opcode := e.fetch()
	e.index = index
	if h := indexOps[opcode]; h != nil {
		return h(e)
	}
	// DD and FD have no effect on this opcode
	return baseOps[opcode](e) + 4
}

func isEDHole(opcode byte) bool {
	switch {
	case opcode < 0x40, opcode >= 0xC0:
		return true
	case opcode >= 0x80 && opcode <= 0x9F:
		return true
	case opcode >= 0xA0 && opcode&0x04 != 0:
		// A4-A7, AC-AF, B4-B7, BC-BF
		return true
	case opcode == 0x77, opcode == 0x7F:
		return true
	}
	return false
}

func (e *Executor) executeED(opcode byte) int {
	if isEDHole(opcode) {
		e.done()
		return e.unsupportedED(opcode)
	}
	if opcode >= 0xA0 {
		return edBlockOps[opcode-0xA0](e)
	}
	return edOps[opcode-0x40](e)
}

func (e *Executor) fetch() byte {
	return e.agent.FetchNextOpcode()
}

func (e *Executor) fetchWord() uint16 {
	low := e.fetch()
	high := e.fetch()
	return toWord(low, high)
}

// done signals the end of the fetch phase of an ordinary instruction.
func (e *Executor) done() {
	e.agent.FetchFinished(FetchInfo{})
}

func (e *Executor) read(address uint16) byte {
	return e.agent.ReadFromMemory(address)
}

func (e *Executor) write(address uint16, v byte) {
	e.agent.WriteToMemory(address, v)
}

func (e *Executor) readWord(address uint16) uint16 {
	low := e.read(address)
	high := e.read(address + 1)
	return toWord(low, high)
}

func (e *Executor) writeWord(address uint16, v uint16) {
	e.write(address, LowByte(v))
	e.write(address+1, HighByte(v))
}

func (e *Executor) push(v uint16) {
	if err := e.r.DecSP(); err != nil {
		panic(err)
	}
	e.write(e.r.SP(), HighByte(v))
	if err := e.r.DecSP(); err != nil {
		panic(err)
	}
	e.write(e.r.SP(), LowByte(v))
}

func (e *Executor) pop() uint16 {
	low := e.read(e.r.SP())
	if err := e.r.IncSP(); err != nil {
		panic(err)
	}
	high := e.read(e.r.SP())
	if err := e.r.IncSP(); err != nil {
		panic(err)
	}
	return toWord(low, high)
}

// registers8 maps the 3 bit register field of an opcode. Code 6 selects
// (HL) and has no register.
var registers8 = [8]Register8{RegisterB, RegisterC, RegisterD, RegisterE, RegisterH, RegisterL, 0, RegisterA}

// registerPairs maps the 2 bit register pair field of an opcode.
var registerPairs = [4]Register16{RegisterBC, RegisterDE, RegisterHL, RegisterSP}

// stackPairs maps the register pair field of PUSH and POP.
var stackPairs = [4]Register16{RegisterBC, RegisterDE, RegisterHL, RegisterAF}

func (e *Executor) reg8(code byte) byte {
	return e.r.Read8(registers8[code])
}

func (e *Executor) setReg8(code byte, v byte) {
	e.r.Write8(registers8[code], v)
}

// indexReg8 substitutes IXH/IXL (or IYH/IYL) for H and L.
func (e *Executor) indexReg8(code byte) Register8 {
	switch code {
	case 4:
		return Register8(e.index) + 1
	case 5:
		return Register8(e.index)
	}
	return registers8[code]
}

// indexPair substitutes IX (or IY) for HL.
func (e *Executor) indexPair(code byte) Register16 {
	if code == 2 {
		return e.index
	}
	return registerPairs[code]
}

// condition evaluates the 3 bit condition field: NZ, Z, NC, C, PO, PE, P, M.
func (e *Executor) condition(cc byte) bool {
	f := e.f()
	var set bool
	switch cc >> 1 {
	case 0:
		set = f&fZ != 0
	case 1:
		set = f&fC != 0
	case 2:
		set = f&fPV != 0
	case 3:
		set = f&fS != 0
	}
	if cc&0x01 == 0 {
		return !set
	}
	return set
}
