package devices

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sema/z80emu/pkg/z80"
	"github.com/stretchr/testify/require"
)

func TestTimerRejectsZeroPeriod(t *testing.T) {
	_, err := NewTimer(0x20, 0, 0xFF)
	require.Equal(t, z80.ErrConfiguration, errors.Cause(err))
}

func TestTimerDoesNothingUntilEnabled(t *testing.T) {
	timer, err := NewTimer(0x20, 100, 0xFF)
	require.NoError(t, err)

	timer.Tick(1000)
	require.False(t, timer.IntLineIsActive())
	require.Equal(t, byte(0), timer.In(0x20))
}

func TestTimerCanInterrupt(t *testing.T) {
	tests := []struct {
		name        string
		ticks       []int
		wantActive  bool
		wantCounter byte
	}{
		{
			name:        "just below the period",
			ticks:       []int{40, 59},
			wantActive:  false,
			wantCounter: 0,
		},
		{
			name:        "exactly one period",
			ticks:       []int{40, 60},
			wantActive:  true,
			wantCounter: 1,
		},
		{
			name:        "several periods in one tick",
			ticks:       []int{350},
			wantActive:  true,
			wantCounter: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timer, err := NewTimer(0x20, 100, 0xFF)
			require.NoError(t, err)
			timer.Enable(true)

			for _, n := range tt.ticks {
				timer.Tick(n)
			}
			require.Equal(t, tt.wantActive, timer.IntLineIsActive())
			require.Equal(t, tt.wantCounter, timer.In(0x20))
		})
	}
}

func TestTimerWriteAcknowledges(t *testing.T) {
	timer, err := NewTimer(0x20, 10, 0xD7)
	require.NoError(t, err)
	timer.Out(0x20, timerEnable)

	timer.Tick(10)
	require.True(t, timer.IntLineIsActive())
	require.Equal(t, byte(0xD7), timer.ValueOnDataBus())

	timer.Out(0x20, timerEnable)
	require.False(t, timer.IntLineIsActive())

	// disabling also drops the partial period
	timer.Tick(5)
	timer.Out(0x20, 0)
	timer.Out(0x20, timerEnable)
	timer.Tick(5)
	require.False(t, timer.IntLineIsActive())
}

func TestTimerInterruptsRunningProgram(t *testing.T) {
	program := make([]byte, 0x40)
	copy(program, []byte{
		0x31, 0x00, 0x90, // LD SP,9000h
		0xED, 0x56, // IM 1
		0x3E, 0x01, // LD A,1
		0xD3, 0x20, // OUT (20h),A
		0xFB,       // EI
		0x18, 0xFE, // JR $
	})
	copy(program[0x38:], []byte{0xF3, 0x76}) // DI; HALT
	p, ports := newTestProcessor(t, program)

	timer, err := NewTimer(0x20, 100, 0xFF)
	require.NoError(t, err)
	require.NoError(t, timer.Attach(p, ports))

	require.NoError(t, p.Start(context.Background()))
	require.Equal(t, z80.StopReasonDiPlusHalt, p.StopReason())
	require.Equal(t, uint16(0x003A), p.Registers().PC())

	data, err := p.Memory().GetContents(int(p.Registers().SP()), 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0A, 0x00}, data)
	require.Equal(t, byte(1), timer.In(0x20))
}

func TestTimerCountsInterruptAcceptance(t *testing.T) {
	// NOPs everywhere, the NMI handler at 0x66 included
	p, ports := newTestProcessor(t, nil)

	timer, err := NewTimer(0x20, 15, 0xFF)
	require.NoError(t, err)
	require.NoError(t, timer.Attach(p, ports))
	timer.Enable(true)

	// NOP (4) then the NMI (11)
	p.PulseNMI()
	require.NoError(t, p.ExecuteNextInstruction())
	require.Equal(t, uint16(0x0066), p.Registers().PC())
	require.Equal(t, byte(0), timer.In(0x20))

	// the NMI cost reaches the timer with the next instruction
	require.NoError(t, p.ExecuteNextInstruction())
	require.Equal(t, uint64(19), p.TStatesElapsedSinceReset())
	require.Equal(t, byte(1), timer.In(0x20))
}
