package z80

import (
	"github.com/pkg/errors"
)

// InstructionExecutor decodes and executes one instruction per Execute call.
//
// Execute receives the first opcode byte, already fetched. It fetches any
// further opcode and operand bytes through the agent, signals FetchFinished
// exactly once, applies the instruction and returns its T-states excluding
// wait states.
type InstructionExecutor interface {
	Execute(opcode byte) int
	SetAgent(agent ExecutionAgent)
}

// FetchInfo classifies an instruction for the auto-stop checks.
type FetchInfo struct {
	IsRet    bool
	IsLdSp   bool
	IsEiOrDi bool
	IsHalt   bool
}

// ExecutionAgent is how an InstructionExecutor talks to the processor.
//
// Misuse panics with an error: ErrInvalidOperation when a method is called
// outside an executing instruction or in the wrong phase of it,
// ErrProtocolViolation when FetchFinished is signalled twice. The execution
// loop recovers these and stops with StopReasonExceptionThrown.
type ExecutionAgent interface {
	// FetchNextOpcode reads the byte at PC as an M1 cycle and increments PC.
	FetchNextOpcode() byte

	// PeekNextOpcode returns the byte FetchNextOpcode would return, without
	// moving PC.
	PeekNextOpcode() byte

	ReadFromMemory(address uint16) byte
	WriteToMemory(address uint16, v byte)
	ReadFromPort(port byte) byte
	WriteToPort(port byte, v byte)

	SetInterruptMode(mode int)

	// Stop makes the execution loop stop once this instruction completes.
	Stop(pause bool)

	FetchFinished(info FetchInfo)

	Registers() *Registers
}

// executionContext is the state of the instruction currently executing.
type executionContext struct {
	address       uint16
	opcodeBytes   []byte
	fetchComplete bool
	fetchInfo     FetchInfo
	// spAtFetch is SP when the fetch finished, before a RET pops
	spAtFetch uint16

	peeked       bool
	peekedOpcode byte

	waitStates int
	stopReason StopReason
}

func newExecutionContext(address uint16) *executionContext {
	return &executionContext{
		address:     address,
		opcodeBytes: make([]byte, 0, 4),
		stopReason:  StopReasonNotApplicable,
	}
}

// setStopReason records the first reason only.
func (c *executionContext) setStopReason(reason StopReason) {
	if c.stopReason == StopReasonNotApplicable {
		c.stopReason = reason
	}
}

func (c *executionContext) requestStop(pause bool) {
	if pause {
		c.setStopReason(StopReasonPauseInvoked)
	} else {
		c.setStopReason(StopReasonStopInvoked)
	}
}

func protocolViolation(c *executionContext) error {
	return errors.Wrapf(ErrProtocolViolation, "instruction % X at %#04x did not signal fetch finished", c.opcodeBytes, c.address)
}

// agent is the ExecutionAgent of a Processor.
type agent struct {
	p *Processor
}

func (a agent) context(method string) *executionContext {
	c := a.p.current
	if c == nil {
		panic(errors.Wrapf(ErrInvalidOperation, "%s called outside of instruction execution", method))
	}
	return c
}

func (a agent) fetching(method string) *executionContext {
	c := a.context(method)
	if c.fetchComplete {
		panic(errors.Wrapf(ErrInvalidOperation, "%s called after fetch of % X finished", method, c.opcodeBytes))
	}
	return c
}

func (a agent) executing(method string) *executionContext {
	c := a.context(method)
	if !c.fetchComplete {
		panic(errors.Wrapf(ErrInvalidOperation, "%s called before fetch of % X finished", method, c.opcodeBytes))
	}
	return c
}

func (a agent) FetchNextOpcode() byte {
	c := a.fetching("FetchNextOpcode")

	pc := a.p.registers.PC()
	var v byte
	if c.peeked {
		v = c.peekedOpcode
		c.peeked = false
	} else {
		v = a.p.readMemory(pc, true)
	}
	a.p.registers.SetPC(pc + 1)

	c.opcodeBytes = append(c.opcodeBytes, v)
	return v
}

func (a agent) PeekNextOpcode() byte {
	c := a.fetching("PeekNextOpcode")
	if !c.peeked {
		c.peekedOpcode = a.p.readMemory(a.p.registers.PC(), true)
		c.peeked = true
	}
	return c.peekedOpcode
}

func (a agent) ReadFromMemory(address uint16) byte {
	a.executing("ReadFromMemory")
	return a.p.readMemory(address, false)
}

func (a agent) WriteToMemory(address uint16, v byte) {
	a.executing("WriteToMemory")
	a.p.writeMemory(address, v)
}

func (a agent) ReadFromPort(port byte) byte {
	a.executing("ReadFromPort")
	return a.p.readPort(port)
}

func (a agent) WriteToPort(port byte, v byte) {
	a.executing("WriteToPort")
	a.p.writePort(port, v)
}

func (a agent) SetInterruptMode(mode int) {
	a.context("SetInterruptMode")
	if err := checkInterruptMode(mode); err != nil {
		panic(err)
	}
	a.p.interruptMode = mode
}

func (a agent) Stop(pause bool) {
	a.context("Stop").requestStop(pause)
}

func (a agent) FetchFinished(info FetchInfo) {
	c := a.context("FetchFinished")
	if c.fetchComplete {
		panic(errors.Wrapf(ErrProtocolViolation, "fetch of % X at %#04x finished twice", c.opcodeBytes, c.address))
	}
	c.fetchComplete = true
	c.fetchInfo = info
	c.spAtFetch = a.p.registers.SP()

	a.p.fireInstructionEvent(a.p.beforeExecutionListeners, c, 0)
}

func (a agent) Registers() *Registers {
	return a.p.registers
}
