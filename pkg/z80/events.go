package z80

// MemoryAccessKind tells which bus operation a MemoryAccessEvent belongs to.
type MemoryAccessKind uint8

const (
	BeforeMemoryRead MemoryAccessKind = iota
	AfterMemoryRead
	BeforeMemoryWrite
	AfterMemoryWrite
	BeforePortRead
	AfterPortRead
	BeforePortWrite
	AfterPortWrite
)

var memoryAccessKindNames = map[MemoryAccessKind]string{
	BeforeMemoryRead:  "BeforeMemoryRead",
	AfterMemoryRead:   "AfterMemoryRead",
	BeforeMemoryWrite: "BeforeMemoryWrite",
	AfterMemoryWrite:  "AfterMemoryWrite",
	BeforePortRead:    "BeforePortRead",
	AfterPortRead:     "AfterPortRead",
	BeforePortWrite:   "BeforePortWrite",
	AfterPortWrite:    "AfterPortWrite",
}

func (k MemoryAccessKind) String() string {
	name, ok := memoryAccessKindNames[k]
	if !ok {
		return "Unknown"
	}
	return name
}

// IsRead is true for memory and port reads.
func (k MemoryAccessKind) IsRead() bool {
	return k == BeforeMemoryRead || k == AfterMemoryRead || k == BeforePortRead || k == AfterPortRead
}

// MemoryAccessEvent is passed to MemoryAccessFunc listeners around every
// memory and port access made while an instruction executes.
//
// Before a read, Value is 0xFF; setting CancelAccess skips the store and the
// read returns Value instead. Before a write, Value is the byte about to be
// written and may be replaced; CancelAccess drops the write. The after event
// fires in both cases with CancelAccess as left by the before listeners.
// Changing Value after a read changes what the instruction sees.
type MemoryAccessEvent struct {
	Kind         MemoryAccessKind
	Address      uint16
	Value        byte
	CancelAccess bool
}

type MemoryAccessFunc func(e *MemoryAccessEvent)

// InstructionEvent is passed to instruction listeners.
type InstructionEvent struct {
	// OpcodeBytes holds the bytes fetched so far. It is empty before the
	// fetch and complete from before-execution onwards.
	OpcodeBytes []byte

	// Address is the address of the first opcode byte.
	Address uint16

	// TStates is the cost of the instruction including wait states. It is
	// only set after execution.
	TStates int

	ctx *executionContext
}

// Stop requests the execution loop to stop at the end of the current
// instruction. Before a fetch, the instruction is not executed at all.
func (e *InstructionEvent) Stop(pause bool) {
	e.ctx.requestStop(pause)
}

type InstructionFunc func(e *InstructionEvent)

// OnMemoryAccess registers a listener for memory and port accesses.
func (p *Processor) OnMemoryAccess(fn MemoryAccessFunc) {
	p.memoryListeners = append(p.memoryListeners, fn)
}

// OnBeforeInstructionFetch registers a listener called before the first
// opcode byte of every instruction is fetched.
func (p *Processor) OnBeforeInstructionFetch(fn InstructionFunc) {
	p.beforeFetchListeners = append(p.beforeFetchListeners, fn)
}

// OnBeforeInstructionExecution registers a listener called once an
// instruction has been fully fetched, before its effects are applied.
func (p *Processor) OnBeforeInstructionExecution(fn InstructionFunc) {
	p.beforeExecutionListeners = append(p.beforeExecutionListeners, fn)
}

// OnAfterInstructionExecution registers a listener called after every
// instruction, including the synthetic NOPs executed while halted.
func (p *Processor) OnAfterInstructionExecution(fn InstructionFunc) {
	p.afterExecutionListeners = append(p.afterExecutionListeners, fn)
}

func (p *Processor) fireInstructionEvent(listeners []InstructionFunc, c *executionContext, tstates int) {
	if len(listeners) == 0 {
		return
	}
	e := &InstructionEvent{
		OpcodeBytes: append([]byte(nil), c.opcodeBytes...),
		Address:     c.address,
		TStates:     tstates,
		ctx:         c,
	}
	for _, fn := range listeners {
		fn(e)
	}
}

func (p *Processor) fireMemoryEvent(e *MemoryAccessEvent) {
	for _, fn := range p.memoryListeners {
		fn(e)
	}
}

// readMemory performs a read on the bus, billing wait states to the current
// instruction.
func (p *Processor) readMemory(address uint16, m1 bool) byte {
	if m1 {
		p.current.waitStates += p.memory.M1WaitStates(int(address))
	} else {
		p.current.waitStates += p.memory.WaitStates(int(address))
	}
	return p.read(p.memory, address, BeforeMemoryRead, AfterMemoryRead)
}

func (p *Processor) writeMemory(address uint16, v byte) {
	p.current.waitStates += p.memory.WaitStates(int(address))
	p.write(p.memory, address, v, BeforeMemoryWrite, AfterMemoryWrite)
}

func (p *Processor) readPort(port byte) byte {
	p.current.waitStates += p.ports.WaitStates(int(port))
	return p.read(p.ports, uint16(port), BeforePortRead, AfterPortRead)
}

func (p *Processor) writePort(port byte, v byte) {
	p.current.waitStates += p.ports.WaitStates(int(port))
	p.write(p.ports, uint16(port), v, BeforePortWrite, AfterPortWrite)
}

func (p *Processor) read(space *AddressSpace, address uint16, before, after MemoryAccessKind) byte {
	if len(p.memoryListeners) == 0 {
		return space.Read(int(address))
	}

	e := &MemoryAccessEvent{Kind: before, Address: address, Value: 0xFF}
	p.fireMemoryEvent(e)
	if !e.CancelAccess {
		e.Value = space.Read(int(address))
	}

	e.Kind = after
	p.fireMemoryEvent(e)
	return e.Value
}

func (p *Processor) write(space *AddressSpace, address uint16, v byte, before, after MemoryAccessKind) {
	if len(p.memoryListeners) == 0 {
		space.Write(int(address), v)
		return
	}

	e := &MemoryAccessEvent{Kind: before, Address: address, Value: v}
	p.fireMemoryEvent(e)
	if !e.CancelAccess {
		space.Write(int(address), e.Value)
	}

	e.Kind = after
	p.fireMemoryEvent(e)
}
