package z80

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sema/z80emu/pkg/intelhex"
	"github.com/stretchr/testify/require"
)

func TestPlainMemoryOutOfBoundsAccessIsHarmless(t *testing.T) {
	memory := NewPlainMemory(16)

	require.Equal(t, byte(0xFF), memory.Read(16))
	require.Equal(t, byte(0xFF), memory.Read(-1))
	memory.Write(16, 0x42)

	_, err := memory.GetContents(8, 9)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))

	err = memory.SetContents(15, []byte{1, 2})
	require.Equal(t, ErrOutOfRange, errors.Cause(err))
}

func TestAddressSpaceAccessModes(t *testing.T) {
	tests := []struct {
		name      string
		mode      AccessMode
		wantRead  byte
		wantStore byte
	}{
		{
			name:      "read and write reach the store",
			mode:      AccessReadAndWrite,
			wantRead:  0x99,
			wantStore: 0x99,
		},
		{
			name:      "read only drops writes",
			mode:      AccessReadOnly,
			wantRead:  0x11,
			wantStore: 0x11,
		},
		{
			name:      "write only reads 0xFF",
			mode:      AccessWriteOnly,
			wantRead:  0xFF,
			wantStore: 0x99,
		},
		{
			name:      "none neither reads nor writes",
			mode:      AccessNone,
			wantRead:  0xFF,
			wantStore: 0x11,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewPlainMemory(MemorySize)
			store.Write(0x4000, 0x11)
			space := newAddressSpace("memory", store, MemorySize, true)

			require.NoError(t, space.SetAccessMode(0x4000, 0x100, tt.mode))
			require.Equal(t, tt.mode, space.AccessMode(0x40FF))
			require.Equal(t, AccessReadAndWrite, space.AccessMode(0x4100))

			space.Write(0x4000, 0x99)
			require.Equal(t, tt.wantRead, space.Read(0x4000))
			require.Equal(t, tt.wantStore, store.Read(0x4000))
		})
	}
}

func TestAddressSpaceRejectsBadRegions(t *testing.T) {
	space := newAddressSpace("ports", NewPlainPorts(), PortCount, false)

	err := space.SetAccessMode(0xF0, 0x20, AccessNone)
	require.Equal(t, ErrConfiguration, errors.Cause(err))

	err = space.SetWaitStates(-1, 1, 1)
	require.Equal(t, ErrConfiguration, errors.Cause(err))

	err = space.SetM1WaitStates(0, 1, 1)
	require.Equal(t, ErrConfiguration, errors.Cause(err))

	err = space.SetAccessMode(0, 1, AccessMode(42))
	require.Equal(t, ErrConfiguration, errors.Cause(err))
}

func TestAddressSpaceWaitStates(t *testing.T) {
	space := newAddressSpace("memory", NewPlainMemory(MemorySize), MemorySize, true)
	require.NoError(t, space.SetWaitStates(0x8000, 0x10, 3))
	require.NoError(t, space.SetM1WaitStates(0x0000, 0x4000, 1))

	require.Equal(t, 3, space.WaitStates(0x800F))
	require.Equal(t, 0, space.WaitStates(0x8010))
	require.Equal(t, 1, space.M1WaitStates(0x3FFF))
	require.Equal(t, 0, space.M1WaitStates(0x8000))
}

func TestLoadIntelHexCopiesDataRecordsAtBase(t *testing.T) {
	input := strings.Join([]string{
		":03000000010203F7",
		":02001000AABB89",
		":00000001FF",
	}, "\n")

	space := newAddressSpace("memory", NewPlainMemory(MemorySize), MemorySize, true)
	require.NoError(t, space.LoadIntelHex(strings.NewReader(input), 0x100))

	data, err := space.GetContents(0x100, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	data, err = space.GetContents(0x110, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, data)
}

func TestLoadIntelHexFailsOnBadChecksum(t *testing.T) {
	space := newAddressSpace("memory", NewPlainMemory(MemorySize), MemorySize, true)
	err := space.LoadIntelHex(strings.NewReader(":03000000010203F8\n:00000001FF\n"), 0)
	require.Equal(t, intelhex.ErrChecksum, errors.Cause(err))
}

func TestSaveIntelHexRoundTrip(t *testing.T) {
	program := make([]byte, 40)
	for i := range program {
		program[i] = byte(i * 7)
	}

	source := newAddressSpace("memory", NewPlainMemory(MemorySize), MemorySize, true)
	require.NoError(t, source.SetContents(0x2000, program))

	var buf bytes.Buffer
	require.NoError(t, source.SaveIntelHex(&buf, 0x2000, len(program)))

	target := newAddressSpace("memory", NewPlainMemory(MemorySize), MemorySize, true)
	require.NoError(t, target.LoadIntelHex(&buf, 0))

	data, err := target.GetContents(0x2000, len(program))
	require.NoError(t, err)
	require.Equal(t, program, data)
}

func TestBankedMemory(t *testing.T) {
	memory := NewBankedMemory(MemorySize)
	require.NoError(t, memory.SetBankType(0, BankRom))
	require.NoError(t, memory.SetBankType(7, BankNone))

	// bulk loads ignore bank types
	require.NoError(t, memory.SetContents(0x0000, []byte{0xC3, 0x00, 0x01}))
	memory.Write(0x0000, 0x00)
	require.Equal(t, byte(0xC3), memory.Read(0x0000))
	require.Equal(t, BankRom, memory.BankType(0x1FFF))

	memory.Write(0x2000, 0x42)
	require.Equal(t, byte(0x42), memory.Read(0x2000))

	memory.Write(0xE000, 0x42)
	require.Equal(t, byte(0xFF), memory.Read(0xE000))

	err := memory.SetBankType(8, BankRam)
	require.Equal(t, ErrConfiguration, errors.Cause(err))
}

type recordingDevice struct {
	in  byte
	out []byte
}

func (d *recordingDevice) In(port byte) byte {
	return d.in + port
}

func (d *recordingDevice) Out(port byte, v byte) {
	d.out = append(d.out, port, v)
}

func TestDevicePortsRouteToAttachedDevice(t *testing.T) {
	device := &recordingDevice{in: 0x10}
	ports := NewDevicePorts()
	require.NoError(t, ports.Attach(0x20, 2, device))

	require.Equal(t, byte(0x31), ports.Read(0x21))
	require.Equal(t, byte(0xFF), ports.Read(0x22))

	ports.Write(0x20, 0xAA)
	ports.Write(0x30, 0xBB)
	require.Equal(t, []byte{0x20, 0xAA}, device.out)

	require.NoError(t, ports.Detach(0x20, 2))
	require.Equal(t, byte(0xFF), ports.Read(0x21))

	err := ports.Attach(0xFF, 2, device)
	require.Equal(t, ErrConfiguration, errors.Cause(err))
}

func TestPlainPortsLatchWrites(t *testing.T) {
	ports := NewPlainPorts()
	ports.Write(0x10, 0x5A)
	require.Equal(t, byte(0x5A), ports.Read(0x10))
	require.Equal(t, byte(0xFF), ports.Read(PortCount))
}
