package devices

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sema/z80emu/pkg/z80"
)

const (
	// Console status (read)
	//
	// Bit 0 - Receive buffer full (1=a byte can be read from the data port)
	// Bit 1 - Transmit buffer empty (always 1, output is never delayed)
	statusReceiveFull   byte = 0x01
	statusTransmitEmpty byte = 0x02

	// Console control (write)
	//
	// Bit 7 - Interrupt Enable (1=INT is active while the receive buffer is full)
	controlInterruptEnable byte = 0x80
)

type ConsoleDataCallback func(data byte)

// Console is a serial terminal occupying two consecutive ports: data at
// the base port and status/control at base+1.
//
// Reading the data port consumes the oldest queued input byte, or returns
// zero when nothing is queued. Writing it hands the byte to Callback.
// The console is also an interrupt source, active while input is queued
// and interrupts are enabled in the control register.
type Console struct {
	base byte

	mu      sync.Mutex
	input   []byte
	control byte

	// bus is the value put on the data bus when the interrupt is acknowledged
	bus byte

	// Callback is called (if set) on every byte written to the data port.
	Callback ConsoleDataCallback
}

// NewConsole returns a console on ports base and base+1 which puts bus on
// the data bus when its interrupt is acknowledged.
func NewConsole(base byte, bus byte) *Console {
	return &Console{
		base: base,
		bus:  bus,
	}
}

// Attach connects the console to its two ports.
func (c *Console) Attach(ports *z80.DevicePorts) error {
	return ports.Attach(int(c.base), 2, c)
}

func (c *Console) In(port byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch port {
	case c.base:
		if len(c.input) == 0 {
			return 0
		}
		v := c.input[0]
		c.input = c.input[1:]
		return v
	case c.base + 1:
		status := statusTransmitEmpty
		if len(c.input) > 0 {
			status |= statusReceiveFull
		}
		return status
	}
	return 0xFF
}

func (c *Console) Out(port byte, v byte) {
	switch port {
	case c.base:
		if c.Callback != nil {
			c.Callback(v)
		}
	case c.base + 1:
		c.mu.Lock()
		c.control = v
		c.mu.Unlock()
	}
}

// Feed queues input bytes. It may be called from any goroutine.
func (c *Console) Feed(data ...byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = append(c.input, data...)
}

// Pending is the number of queued input bytes.
func (c *Console) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.input)
}

func (c *Console) IntLineIsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.control&controlInterruptEnable != 0 && len(c.input) > 0
}

func (c *Console) ValueOnDataBus() byte {
	return c.bus
}

// Pump feeds everything read from r into the console until r is exhausted
// or ctx is done. A blocked Read is only noticed once it returns.
func (c *Console) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.Feed(buf[:n]...)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read console input")
		}
	}
}

func (c *Console) String() string {
	return "CONSOLE"
}
