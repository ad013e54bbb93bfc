package z80

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
)

const (
	defaultClockFrequency = 4.0
	defaultSpeedFactor    = 1.0
)

// ProcessorState is the state of the execution loop.
type ProcessorState uint8

const (
	StateNeverRan ProcessorState = iota
	StateRunning
	StatePaused
	StateStopped
)

var processorStateNames = map[ProcessorState]string{
	StateNeverRan: "NeverRan",
	StateRunning:  "Running",
	StatePaused:   "Paused",
	StateStopped:  "Stopped",
}

func (s ProcessorState) String() string {
	name, ok := processorStateNames[s]
	if !ok {
		return "Unknown"
	}
	return name
}

// StopReason tells why the execution loop last stopped.
type StopReason uint8

const (
	StopReasonNotApplicable StopReason = iota
	StopReasonNeverRan
	StopReasonStopInvoked
	StopReasonPauseInvoked
	StopReasonExecuteNextInstructionInvoked
	StopReasonExceptionThrown
	StopReasonDiPlusHalt
	StopReasonRetWithStackEmpty
	StopReasonRetExecuted
	StopReasonStackLimitReached
	StopReasonBreakpointReached
	StopReasonCycleLimitReached
)

var stopReasonNames = map[StopReason]string{
	StopReasonNotApplicable:                 "NotApplicable",
	StopReasonNeverRan:                      "NeverRan",
	StopReasonStopInvoked:                   "StopInvoked",
	StopReasonPauseInvoked:                  "PauseInvoked",
	StopReasonExecuteNextInstructionInvoked: "ExecuteNextInstructionInvoked",
	StopReasonExceptionThrown:               "ExceptionThrown",
	StopReasonDiPlusHalt:                    "DiPlusHalt",
	StopReasonRetWithStackEmpty:             "RetWithStackEmpty",
	StopReasonRetExecuted:                   "RetExecuted",
	StopReasonStackLimitReached:             "StackLimitReached",
	StopReasonBreakpointReached:             "BreakpointReached",
	StopReasonCycleLimitReached:             "CycleLimitReached",
}

func (r StopReason) String() string {
	name, ok := stopReasonNames[r]
	if !ok {
		return "Unknown"
	}
	return name
}

// Processor is a Z80 attached to a memory and a port address space.
//
// The execution loop runs on the goroutine calling Start, Continue or
// ExecuteNextInstruction. Registers, state queries, breakpoints, interrupt
// sources and PulseNMI may be used from other goroutines; the remaining
// setters must only be called while the processor is not running.
type Processor struct {
	registers *Registers
	memory    *AddressSpace
	ports     *AddressSpace
	executor  InstructionExecutor
	logger    log.Logger

	clock          *ClockSynchronizer
	clockFrequency float64
	speedFactor    float64
	uncapped       bool

	interruptMode      int
	// resetInterruptMode is the mode Reset restores
	resetInterruptMode int
	nmi                nmiLatch

	autoStopOnDiPlusHalt        bool
	autoStopOnRetWithStackEmpty bool
	autoStopOnRet               bool
	autoStopOnStackLimit        bool
	cycleLimit                  uint64

	// stackViolations is the violation count seen by the last auto-stop
	// check, so pushes made while accepting an interrupt are still caught
	stackViolations uint64

	tstatesSinceStart uint64
	tstatesSinceReset uint64

	memoryListeners          []MemoryAccessFunc
	beforeFetchListeners     []InstructionFunc
	beforeExecutionListeners []InstructionFunc
	afterExecutionListeners  []InstructionFunc

	// current is the instruction being executed, nil outside of the loop
	current *executionContext

	// mu guards the fields below
	mu                  sync.Mutex
	state               ProcessorState
	stopReason          StopReason
	halted              bool
	breakpoints         []Breakpoint
	breakpointAddresses map[uint16]struct{}
	sources             []InterruptSource
}

// New returns a processor in the reset state, with 64KiB of RAM, 256 ports
// and the built-in instruction set unless overridden by opts.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		registers:            NewRegisters(),
		memory:               newAddressSpace("memory", NewPlainMemory(MemorySize), MemorySize, true),
		ports:                newAddressSpace("ports", NewPlainPorts(), PortCount, false),
		executor:             NewExecutor(),
		logger:               log.Base(),
		clockFrequency:       defaultClockFrequency,
		speedFactor:          defaultSpeedFactor,
		autoStopOnDiPlusHalt: true,
		state:                StateNeverRan,
		stopReason:           StopReasonNeverRan,
		breakpointAddresses:  make(map[uint16]struct{}),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if err := p.updateClock(); err != nil {
		return nil, err
	}

	p.executor.SetAgent(agent{p: p})
	p.Reset()
	return p, nil
}

func (p *Processor) Registers() *Registers {
	return p.registers
}

func (p *Processor) Memory() *AddressSpace {
	return p.memory
}

func (p *Processor) Ports() *AddressSpace {
	return p.ports
}

func (p *Processor) State() ProcessorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Processor) StopReason() StopReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopReason
}

// IsHalted is true from the execution of HALT until an interrupt is accepted
// or the processor is reset.
func (p *Processor) IsHalted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted
}

func (p *Processor) setHalted(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted = v
}

func (p *Processor) setState(state ProcessorState, reason StopReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.stopReason = reason
}

// TStatesElapsedSinceStart counts T-states, wait states included, since the
// last Start.
func (p *Processor) TStatesElapsedSinceStart() uint64 {
	return atomic.LoadUint64(&p.tstatesSinceStart)
}

// TStatesElapsedSinceReset counts T-states, wait states included, since the
// last Reset.
func (p *Processor) TStatesElapsedSinceReset() uint64 {
	return atomic.LoadUint64(&p.tstatesSinceReset)
}

func (p *Processor) addTStates(n int) {
	atomic.AddUint64(&p.tstatesSinceStart, uint64(n))
	atomic.AddUint64(&p.tstatesSinceReset, uint64(n))
}

func (p *Processor) InterruptMode() int {
	return p.interruptMode
}

func checkInterruptMode(mode int) error {
	if mode < 0 || mode > 2 {
		return errors.Wrapf(ErrConfiguration, "interrupt mode %d, want 0, 1 or 2", mode)
	}
	return nil
}

// SetInterruptMode changes the current interrupt mode and the mode Reset
// restores. IM instructions only change the current mode.
func (p *Processor) SetInterruptMode(mode int) error {
	if err := checkInterruptMode(mode); err != nil {
		return err
	}
	p.interruptMode = mode
	p.resetInterruptMode = mode
	return nil
}

func (p *Processor) ClockFrequency() float64 {
	return p.clockFrequency
}

// SetClockFrequency changes the emulated frequency in MHz. Frequency times
// speed factor must be within [0.001, 100].
func (p *Processor) SetClockFrequency(mhz float64) error {
	if err := checkEffectiveFrequency(mhz * p.speedFactor); err != nil {
		return err
	}
	p.clockFrequency = mhz
	return p.updateClock()
}

func (p *Processor) ClockSpeedFactor() float64 {
	return p.speedFactor
}

// SetClockSpeedFactor scales the emulated frequency. Frequency times speed
// factor must be within [0.001, 100].
func (p *Processor) SetClockSpeedFactor(factor float64) error {
	if err := checkEffectiveFrequency(p.clockFrequency * factor); err != nil {
		return err
	}
	p.speedFactor = factor
	return p.updateClock()
}

func (p *Processor) updateClock() error {
	if p.uncapped {
		return nil
	}
	clock, err := NewClockSynchronizer(p.clockFrequency * p.speedFactor)
	if err != nil {
		return err
	}
	p.clock = clock
	return nil
}

func (p *Processor) SetAutoStopOnDiPlusHalt(on bool) {
	p.autoStopOnDiPlusHalt = on
}

func (p *Processor) SetAutoStopOnRetWithStackEmpty(on bool) {
	p.autoStopOnRetWithStackEmpty = on
}

func (p *Processor) SetAutoStopOnRet(on bool) {
	p.autoStopOnRet = on
}

func (p *Processor) SetAutoStopOnStackLimit(on bool) {
	p.autoStopOnStackLimit = on
}

// SetCycleLimit stops the loop once TStatesElapsedSinceStart reaches
// tstates. Zero disables the limit.
func (p *Processor) SetCycleLimit(tstates uint64) {
	p.cycleLimit = tstates
}

// Reset puts the processor in its power-up state: AF and SP at 0xFFFF, PC
// at zero, interrupts disabled in the configured interrupt mode (0 unless
// changed with SetInterruptMode). Memory and ports are not touched.
func (p *Processor) Reset() {
	p.registers.Reset()
	p.registers.SetStartOfStack(p.registers.SP())
	p.stackViolations = p.registers.violations()
	p.interruptMode = p.resetInterruptMode
	p.nmi.ReadAndClear()
	p.setHalted(false)
	atomic.StoreUint64(&p.tstatesSinceReset, 0)
}

// Start resets the processor and runs until a stop condition occurs.
func (p *Processor) Start(ctx context.Context) error {
	p.Reset()
	atomic.StoreUint64(&p.tstatesSinceStart, 0)
	return p.run(ctx, false)
}

// Continue runs from the current state until a stop condition occurs.
func (p *Processor) Continue(ctx context.Context) error {
	return p.run(ctx, false)
}

// ExecuteNextInstruction runs exactly one instruction, plus the interrupt
// it may accept, and stops with StopReasonExecuteNextInstructionInvoked.
// Auto-stop conditions are not evaluated.
func (p *Processor) ExecuteNextInstruction() error {
	return p.run(context.Background(), true)
}

func (p *Processor) run(ctx context.Context, singleStep bool) (err error) {
	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return errors.Wrap(ErrInvalidOperation, "processor is already running")
	}
	p.state = StateRunning
	p.stopReason = StopReasonNotApplicable
	p.mu.Unlock()

	if p.clock != nil {
		p.clock.Start()
	}

	defer func() {
		p.current = nil
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		if !ok {
			p.setState(StateStopped, StopReasonExceptionThrown)
			panic(r)
		}
		p.logger.Errorf("Execution stopped at %#04x: %s", p.registers.PC(), e)
		p.setState(StateStopped, StopReasonExceptionThrown)
		err = e
	}()

	for {
		reason := p.executeNextInstruction(ctx, singleStep)
		if reason == StopReasonNotApplicable {
			continue
		}

		state := StateStopped
		if reason == StopReasonPauseInvoked {
			state = StatePaused
		}
		p.setState(state, reason)
		if !singleStep {
			p.logger.Infof("Execution %s at %#04x: %s", state, p.registers.PC(), reason)
		}
		return nil
	}
}

// executeNextInstruction runs one fetch, execute and interrupt cycle and
// returns the reason to stop, if any.
func (p *Processor) executeNextInstruction(ctx context.Context, singleStep bool) StopReason {
	c := newExecutionContext(p.registers.PC())
	p.current = c

	p.fireInstructionEvent(p.beforeFetchListeners, c, 0)
	if ctx.Err() != nil {
		c.setStopReason(StopReasonStopInvoked)
	}
	if c.stopReason != StopReasonNotApplicable {
		return c.stopReason
	}

	var tstates int
	if p.IsHalted() {
		c.opcodeBytes = append(c.opcodeBytes, 0x00)
		tstates = p.executor.Execute(0x00)
	} else {
		tstates = p.executor.Execute(agent{p: p}.FetchNextOpcode())
	}
	tstates += c.waitStates
	if !c.fetchComplete {
		panic(protocolViolation(c))
	}
	p.addTStates(tstates)
	p.logger.Debugf("Execute %#04x %-12X %2d T-states", c.address, c.opcodeBytes, tstates)

	if !singleStep {
		p.checkAutoStops(c)
	}
	p.stackViolations = p.registers.violations()
	if c.fetchInfo.IsLdSp {
		p.registers.SetStartOfStack(p.registers.SP())
	}

	p.fireInstructionEvent(p.afterExecutionListeners, c, tstates)

	if c.fetchInfo.IsHalt {
		p.setHalted(true)
	}

	if extra := p.acceptInterrupt(c); extra > 0 {
		p.addTStates(extra)
		tstates += extra
	}

	if singleStep {
		c.setStopReason(StopReasonExecuteNextInstructionInvoked)
	} else if p.clock != nil {
		p.clock.TryWait(tstates)
	}
	return c.stopReason
}

// checkAutoStops evaluates the auto-stop conditions in a fixed order; the
// first one that matches determines the stop reason.
func (p *Processor) checkAutoStops(c *executionContext) {
	info := c.fetchInfo
	r := p.registers

	if p.autoStopOnDiPlusHalt && info.IsHalt && !r.IFF1() {
		c.setStopReason(StopReasonDiPlusHalt)
	}

	if p.autoStopOnRetWithStackEmpty && info.IsRet && c.spAtFetch == r.StartOfStack() {
		c.setStopReason(StopReasonRetWithStackEmpty)
	}

	if p.autoStopOnRet && info.IsRet {
		c.setStopReason(StopReasonRetExecuted)
	}

	if p.autoStopOnStackLimit && r.violations() != p.stackViolations {
		p.logger.Warnf("Stack limit crossed at %#04x, SP %#04x", c.address, r.SP())
		c.setStopReason(StopReasonStackLimitReached)
	}

	if p.isBreakpoint(r.PC()) {
		c.setStopReason(StopReasonBreakpointReached)
	}

	if p.cycleLimit > 0 && p.TStatesElapsedSinceStart() >= p.cycleLimit {
		c.setStopReason(StopReasonCycleLimitReached)
	}
}
