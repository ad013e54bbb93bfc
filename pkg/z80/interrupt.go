package z80

import "sync"

const (
	nmiVector  = 0x0066
	im1Vector  = 0x0038
	nmiTStates = 11
	im0TStates = 13
	im1TStates = 13
	im2TStates = 19
)

// InterruptSource is a device able to request a maskable interrupt.
type InterruptSource interface {
	// IntLineIsActive is true while the device requests an interrupt.
	IntLineIsActive() bool

	// ValueOnDataBus is the byte the device puts on the data bus when the
	// interrupt is acknowledged: an opcode in mode 0, the low byte of the
	// vector table address in mode 2.
	ValueOnDataBus() byte
}

// nmiLatch holds an edge-triggered request. Set may be called from any
// goroutine; ReadAndClear consumes the request exactly once.
type nmiLatch struct {
	mu      sync.Mutex
	pending bool
}

func (n *nmiLatch) ReadAndClear() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	result := n.pending
	n.pending = false
	return result
}

func (n *nmiLatch) Set() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = true
}

// PulseNMI latches a non-maskable interrupt request. It is accepted after
// the instruction that is executing when the pulse arrives.
func (p *Processor) PulseNMI() {
	p.nmi.Set()
}

// RegisterInterruptSource adds a source of maskable interrupts. Sources are
// polled in registration order.
func (p *Processor) RegisterInterruptSource(source InterruptSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, source)
}

// InterruptSources returns the registered sources.
func (p *Processor) InterruptSources() []InterruptSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]InterruptSource(nil), p.sources...)
}

func (p *Processor) UnregisterAllInterruptSources() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = nil
}

func (p *Processor) activeInterruptSource() InterruptSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, source := range p.sources {
		if source.IntLineIsActive() {
			return source
		}
	}
	return nil
}

// acceptInterrupt runs after an instruction completes and returns the
// T-states spent servicing an interrupt, if any was accepted.
func (p *Processor) acceptInterrupt(c *executionContext) int {
	if c.fetchInfo.IsEiOrDi {
		// recognition is deferred by one instruction after EI and DI
		return 0
	}

	waitStates := c.waitStates
	if p.nmi.ReadAndClear() {
		p.setHalted(false)
		p.registers.SetIFF1(false)
		p.registers.incrementR(1)
		p.pushPC()
		p.registers.SetPC(nmiVector)
		p.logger.Debugf("Accepted NMI, jump to %#04x", nmiVector)
		return nmiTStates + c.waitStates - waitStates
	}

	if !p.registers.IFF1() {
		return 0
	}

	source := p.activeInterruptSource()
	if source == nil {
		return 0
	}

	p.registers.SetIFF1(false)
	p.registers.SetIFF2(false)
	p.setHalted(false)

	var tstates int
	switch p.interruptMode {
	case 0:
		opcode := source.ValueOnDataBus()
		p.executeOnDataBus(opcode)
		p.logger.Debugf("Accepted IM0 interrupt, executed %#02x", opcode)
		tstates = im0TStates
	case 1:
		p.registers.incrementR(1)
		p.pushPC()
		p.registers.SetPC(im1Vector)
		p.logger.Debugf("Accepted IM1 interrupt, jump to %#04x", im1Vector)
		tstates = im1TStates
	case 2:
		p.registers.incrementR(1)
		pointer := uint16(p.registers.Read8(RegisterI))<<8 | uint16(source.ValueOnDataBus())
		low := p.readMemory(pointer, false)
		high := p.readMemory(pointer+1, false)
		target := toWord(low, high)
		p.pushPC()
		p.registers.SetPC(target)
		p.logger.Debugf("Accepted IM2 interrupt, vector %#04x, jump to %#04x", pointer, target)
		tstates = im2TStates
	}

	return tstates + c.waitStates - waitStates
}

// executeOnDataBus runs the opcode a device placed on the bus in a nested
// instruction context. The outer context keeps accumulating wait states.
func (p *Processor) executeOnDataBus(opcode byte) {
	outer := p.current
	inner := newExecutionContext(p.registers.PC())
	inner.opcodeBytes = append(inner.opcodeBytes, opcode)
	p.current = inner
	defer func() {
		outer.waitStates += inner.waitStates
		p.current = outer
	}()

	p.executor.Execute(opcode)
	if !inner.fetchComplete {
		panic(protocolViolation(inner))
	}
}

func (p *Processor) pushPC() {
	pc := p.registers.PC()
	p.push(HighByte(pc))
	p.push(LowByte(pc))
}

func (p *Processor) push(v byte) {
	if err := p.registers.DecSP(); err != nil {
		panic(err)
	}
	p.writeMemory(p.registers.SP(), v)
}
