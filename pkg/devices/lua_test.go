package devices

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/common/log"
	"github.com/sema/z80emu/pkg/z80"
	"github.com/stretchr/testify/require"
)

const latchScript = `
last = 0
function port_out(port, value)
	last = value
end
function port_in(port)
	return last + port
end
`

func TestLuaPortCallsScript(t *testing.T) {
	d, err := NewLuaPort(latchScript, log.NewNopLogger())
	require.NoError(t, err)
	defer d.Close()

	d.Out(0x10, 0x05)
	require.Equal(t, byte(0x15), d.In(0x10))
}

func TestLuaPortFailuresReadAsFF(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{
			name:   "no handler",
			script: `x = 1`,
		},
		{
			name:   "handler raises an error",
			script: `function port_in(port) error("boom") end`,
		},
		{
			name:   "handler returns a string",
			script: `function port_in(port) return "nope" end`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewLuaPort(tt.script, log.NewNopLogger())
			require.NoError(t, err)
			defer d.Close()

			require.Equal(t, byte(0xFF), d.In(0x00))
			d.Out(0x00, 0x42)
		})
	}
}

func TestLuaPortRejectsBrokenScript(t *testing.T) {
	_, err := NewLuaPort(`function (`, log.NewNopLogger())
	require.Error(t, err)
}

func TestLoadLuaPort(t *testing.T) {
	dir, err := ioutil.TempDir("", "luaport")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "port.lua")
	require.NoError(t, ioutil.WriteFile(path, []byte(latchScript), 0644))

	d, err := LoadLuaPort(path, log.NewNopLogger())
	require.NoError(t, err)
	defer d.Close()
	d.Out(0x01, 0x01)
	require.Equal(t, byte(0x02), d.In(0x01))

	_, err = LoadLuaPort(filepath.Join(dir, "missing.lua"), log.NewNopLogger())
	require.Error(t, err)
}

func TestLuaPortServesProgram(t *testing.T) {
	program := []byte{
		0x3E, 0x07, // LD A,7
		0xD3, 0x30, // OUT (30h),A
		0xDB, 0x30, // IN A,(30h)
		0xF3, 0x76, // DI; HALT
	}
	p, ports := newTestProcessor(t, program)

	d, err := NewLuaPort(`
		stored = 0
		function port_out(port, value) stored = value * 2 end
		function port_in(port) return stored end
	`, log.NewNopLogger())
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Attach(ports, 0x30, 1))

	require.NoError(t, p.Start(context.Background()))
	require.Equal(t, z80.StopReasonDiPlusHalt, p.StopReason())
	require.Equal(t, byte(14), p.Registers().Read8(z80.RegisterA))
}
