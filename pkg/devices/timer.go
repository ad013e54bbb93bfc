package devices

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sema/z80emu/pkg/z80"
)

const (
	// Timer control (write)
	//
	// Bit 0 - Timer Enable
	// Any write also acknowledges a pending interrupt.
	timerEnable byte = 0x01
)

// Timer requests a maskable interrupt every period T-states. The request
// stays active until the program acknowledges it by writing the control
// port. Reading the port returns the number of periods elapsed, modulo 256.
type Timer struct {
	port   byte
	period uint64

	mu      sync.Mutex
	control byte
	counter byte
	elapsed uint64
	pending bool
	bus     byte
}

// NewTimer returns a stopped timer controlled through port. The program
// starts it by setting bit 0 of the control register.
func NewTimer(port byte, period uint64, bus byte) (*Timer, error) {
	if period == 0 {
		return nil, errors.Wrap(z80.ErrConfiguration, "timer period must be at least one T-state")
	}
	return &Timer{
		port:   port,
		period: period,
		bus:    bus,
	}, nil
}

// Attach connects the timer to its control port, registers it as an
// interrupt source and drives it from the processor's T-state counter, so
// the time spent accepting interrupts is counted too.
func (t *Timer) Attach(p *z80.Processor, ports *z80.DevicePorts) error {
	if err := ports.Attach(int(t.port), 1, t); err != nil {
		return err
	}
	p.RegisterInterruptSource(t)

	var last uint64
	p.OnAfterInstructionExecution(func(e *z80.InstructionEvent) {
		now := p.TStatesElapsedSinceReset()
		if now < last {
			// the processor was reset
			last = 0
		}
		t.Tick(int(now - last))
		last = now
	})
	return nil
}

// Enable sets or clears the enable bit as the program would.
func (t *Timer) Enable(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if on {
		t.control |= timerEnable
	} else {
		t.control &^= timerEnable
	}
}

// Tick advances the timer by tstates.
func (t *Timer) Tick(tstates int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.control&timerEnable == 0 {
		return
	}

	t.elapsed += uint64(tstates)
	for t.elapsed >= t.period {
		t.elapsed -= t.period
		t.counter++
		t.pending = true
	}
}

func (t *Timer) In(port byte) byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counter
}

func (t *Timer) Out(port byte, v byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.control = v
	t.pending = false
	if v&timerEnable == 0 {
		t.elapsed = 0
	}
}

func (t *Timer) IntLineIsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Timer) ValueOnDataBus() byte {
	return t.bus
}

func (t *Timer) String() string {
	return "TIMER"
}
