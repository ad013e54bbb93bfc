package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
	"github.com/sema/z80emu/pkg/devices"
	"github.com/sema/z80emu/pkg/ptr"
	"github.com/sema/z80emu/pkg/z80"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

type runCmd struct {
	Path string `arg:"" name:"path" help:"Path to Intel-HEX program" type:"path"`

	Base  string `help:"Address added to every record address" default:"0"`
	Start string `help:"Initial PC, defaults to the reset address"`

	LogLevel string  `help:"Log level (debug traces every instruction)" default:"info"`
	MHz      float64 `name:"mhz" help:"Emulated clock frequency" default:"4"`
	Uncapped bool    `help:"Run as fast as possible"`

	Breakpoint []string `help:"Stop when PC reaches these addresses" sep:","`
	CycleLimit uint64   `help:"Stop after this many T-states"`
	IM         int      `name:"im" help:"Interrupt mode before the program sets one" default:"0"`

	ConsolePort string `help:"First of the two console ports" default:"0x10"`
	ConsoleIRQ  string `help:"Data bus value of console interrupts, disabled if empty"`
	TimerPort   string `help:"Timer control port" default:"0x20"`
	TimerPeriod uint64 `help:"Timer interrupt period in T-states, disabled if zero"`

	Script      string `help:"Lua script implementing port_in/port_out" type:"path"`
	ScriptPorts string `help:"First and count of the ports served by the script" default:"0x30,16"`
}

// parseNumber accepts decimal, 0x hex and 0 octal.
func parseNumber(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", s)
	}
	return v, nil
}

func parseAddress(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseNumber(s, 16)
	if err != nil {
		return nil, err
	}
	return ptr.UInt16(uint16(v)), nil
}

func parsePort(s string) (*byte, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseNumber(s, 8)
	if err != nil {
		return nil, err
	}
	return ptr.Byte(byte(v)), nil
}

// interruptKeyReader ends the input on Ctrl-C, which raw mode delivers as
// a byte instead of a signal.
type interruptKeyReader struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (k interruptKeyReader) Read(b []byte) (int, error) {
	n, err := k.r.Read(b)
	if i := bytes.IndexByte(b[:n], 0x03); i >= 0 {
		k.cancel()
		return i, io.EOF
	}
	return n, err
}

func (r *runCmd) Run() error {
	if err := log.Base().SetLevel(r.LogLevel); err != nil {
		return err
	}
	logger := log.Base()

	ports := z80.NewDevicePorts()
	opts := []z80.Option{
		z80.WithPorts(ports),
		z80.WithClockFrequency(r.MHz),
		z80.WithCycleLimit(r.CycleLimit),
		z80.WithInterruptMode(r.IM),
		z80.WithLogger(logger),
	}
	if r.Uncapped {
		opts = append(opts, z80.WithSpeedUncapped())
	}
	p, err := z80.New(opts...)
	if err != nil {
		return err
	}

	if err := r.loadProgram(p); err != nil {
		return err
	}
	for _, s := range r.Breakpoint {
		address, err := parseAddress(s)
		if err != nil {
			return err
		}
		p.AddBreakpoint("cli", *address)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	console, err := r.attachDevices(p, ports)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return errors.Wrap(err, "failed to put the terminal in raw mode")
		}
		defer term.Restore(fd, state)
		out = term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, "")
	}
	console.Callback = func(data byte) {
		out.Write([]byte{data})
	}

	// Pump blocks in Read until the process exits, so it is not waited for.
	go func() {
		if err := console.Pump(ctx, interruptKeyReader{r: os.Stdin, cancel: cancel}); err != nil {
			logger.Warnf("Console input stopped: %s", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()

		p.Reset()
		start, err := parseAddress(r.Start)
		if err != nil {
			return err
		}
		if start != nil {
			p.Registers().SetPC(*start)
		}
		return p.Continue(gctx)
	})
	g.Go(func() error {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
		defer signal.Stop(signals)

		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-signals:
				if sig == syscall.SIGUSR1 {
					p.PulseNMI()
					continue
				}
				cancel()
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	printState(p)
	return nil
}

func (r *runCmd) loadProgram(p *z80.Processor) error {
	base, err := parseNumber(r.Base, 16)
	if err != nil {
		return err
	}

	f, err := os.Open(r.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open program")
	}
	defer f.Close()

	return p.Memory().LoadIntelHex(f, int(base))
}

func (r *runCmd) attachDevices(p *z80.Processor, ports *z80.DevicePorts) (*devices.Console, error) {
	consolePort, err := parsePort(r.ConsolePort)
	if err != nil {
		return nil, err
	}
	irq, err := parsePort(r.ConsoleIRQ)
	if err != nil {
		return nil, err
	}

	var bus byte = 0xFF
	if irq != nil {
		bus = *irq
	}
	console := devices.NewConsole(*consolePort, bus)
	if err := console.Attach(ports); err != nil {
		return nil, err
	}
	if irq != nil {
		p.RegisterInterruptSource(console)
	}

	if r.TimerPeriod > 0 {
		timerPort, err := parsePort(r.TimerPort)
		if err != nil {
			return nil, err
		}
		timer, err := devices.NewTimer(*timerPort, r.TimerPeriod, 0xFF)
		if err != nil {
			return nil, err
		}
		if err := timer.Attach(p, ports); err != nil {
			return nil, err
		}
	}

	if r.Script != "" {
		var first, count int
		if _, err := fmt.Sscanf(r.ScriptPorts, "%v,%d", &first, &count); err != nil {
			return nil, errors.Wrapf(err, "invalid script ports %q", r.ScriptPorts)
		}
		script, err := devices.LoadLuaPort(r.Script, log.Base())
		if err != nil {
			return nil, err
		}
		if err := script.Attach(ports, first, count); err != nil {
			return nil, err
		}
	}

	return console, nil
}

func printState(p *z80.Processor) {
	r := p.Registers()
	fmt.Fprintf(os.Stderr, "\r\n%s (%s) after %d T-states\r\n", p.State(), p.StopReason(), p.TStatesElapsedSinceStart())
	fmt.Fprintf(os.Stderr, "AF=%04X BC=%04X DE=%04X HL=%04X IX=%04X IY=%04X\r\n",
		r.Read16(z80.RegisterAF), r.Read16(z80.RegisterBC), r.Read16(z80.RegisterDE),
		r.Read16(z80.RegisterHL), r.Read16(z80.RegisterIX), r.Read16(z80.RegisterIY))
	fmt.Fprintf(os.Stderr, "PC=%04X SP=%04X IR=%04X IFF1=%t IFF2=%t IM=%d halted=%t\r\n",
		r.PC(), r.SP(), r.Read16(z80.RegisterIR), r.IFF1(), r.IFF2(), p.InterruptMode(), p.IsHalted())
}

var root struct {
	Run runCmd `cmd:"" help:"run an Intel-HEX program"`
}

func main() {
	cli := kong.Parse(&root)
	err := cli.Run()
	cli.FatalIfErrorf(err)
}
