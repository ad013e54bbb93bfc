package z80

import (
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
)

// Option configures a Processor created by New.
type Option func(p *Processor) error

// WithMemory replaces the default 64KiB of PlainMemory.
func WithMemory(store Store) Option {
	return func(p *Processor) error {
		if store == nil {
			return errors.Wrap(ErrConfiguration, "memory store is nil")
		}
		p.memory = newAddressSpace("memory", store, MemorySize, true)
		return nil
	}
}

// WithPorts replaces the default PlainPorts.
func WithPorts(store Store) Option {
	return func(p *Processor) error {
		if store == nil {
			return errors.Wrap(ErrConfiguration, "port store is nil")
		}
		p.ports = newAddressSpace("ports", store, PortCount, false)
		return nil
	}
}

// WithClockFrequency sets the emulated clock frequency in MHz.
func WithClockFrequency(mhz float64) Option {
	return func(p *Processor) error {
		return p.SetClockFrequency(mhz)
	}
}

// WithClockSpeedFactor scales the clock frequency, e.g. 2 runs twice as
// fast as the emulated hardware.
func WithClockSpeedFactor(factor float64) Option {
	return func(p *Processor) error {
		return p.SetClockSpeedFactor(factor)
	}
}

// WithSpeedUncapped disables throttling, the processor runs as fast as the
// host allows.
func WithSpeedUncapped() Option {
	return func(p *Processor) error {
		p.clock = nil
		p.uncapped = true
		return nil
	}
}

// WithInterruptMode sets the interrupt mode the processor starts and resets
// in.
func WithInterruptMode(mode int) Option {
	return func(p *Processor) error {
		return p.SetInterruptMode(mode)
	}
}

// WithAutoStopOnDiPlusHalt toggles stopping when HALT executes with
// interrupts disabled. It is enabled by default.
func WithAutoStopOnDiPlusHalt(on bool) Option {
	return func(p *Processor) error {
		p.autoStopOnDiPlusHalt = on
		return nil
	}
}

// WithAutoStopOnRetWithStackEmpty stops when a RET executes while SP is at
// the start of the stack, i.e. with nothing left to return to.
func WithAutoStopOnRetWithStackEmpty(on bool) Option {
	return func(p *Processor) error {
		p.autoStopOnRetWithStackEmpty = on
		return nil
	}
}

// WithAutoStopOnRet stops after every RET.
func WithAutoStopOnRet(on bool) Option {
	return func(p *Processor) error {
		p.autoStopOnRet = on
		return nil
	}
}

// WithStackLimit sets the address below which SP overflows.
func WithStackLimit(lower uint16) Option {
	return func(p *Processor) error {
		p.registers.SetStackLowerLimit(lower)
		return nil
	}
}

// WithStackFailFast makes stack overflows and/or underflows raise
// ErrStackOverflow/ErrStackUnderflow out of the execution loop.
func WithStackFailFast(overflow, underflow bool) Option {
	return func(p *Processor) error {
		p.registers.SetStackFailFast(overflow, underflow)
		return nil
	}
}

// WithAutoStopOnStackLimit stops after an instruction that overflows or
// underflows the stack.
func WithAutoStopOnStackLimit(on bool) Option {
	return func(p *Processor) error {
		p.autoStopOnStackLimit = on
		return nil
	}
}

// WithCycleLimit stops once this many T-states have elapsed since Start.
// Zero disables the limit.
func WithCycleLimit(tstates uint64) Option {
	return func(p *Processor) error {
		p.SetCycleLimit(tstates)
		return nil
	}
}

func WithLogger(logger log.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			return errors.Wrap(ErrConfiguration, "logger is nil")
		}
		p.logger = logger
		return nil
	}
}

// WithExecutor replaces the built-in instruction set.
func WithExecutor(executor InstructionExecutor) Option {
	return func(p *Processor) error {
		if executor == nil {
			return errors.Wrap(ErrConfiguration, "executor is nil")
		}
		p.executor = executor
		return nil
	}
}

// WithUnsupportedEDHandler installs the handler for undefined ED opcodes of
// the built-in Executor. It returns the T-states the opcode takes.
func WithUnsupportedEDHandler(fn func(opcode byte) int) Option {
	return func(p *Processor) error {
		e, ok := p.executor.(*Executor)
		if !ok {
			return errors.Wrap(ErrConfiguration, "unsupported ED handler requires the built-in executor")
		}
		e.SetUnsupportedEDHandler(fn)
		return nil
	}
}
