package devices

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
	"github.com/sema/z80emu/pkg/z80"
	lua "github.com/yuin/gopher-lua"
)

const (
	luaInFunction  = "port_in"
	luaOutFunction = "port_out"
)

// LuaPort is a port device implemented by a Lua script. The script defines
// any of
//
//	function port_in(port) return value end
//	function port_out(port, value) end
//
// and may call log(message). A port read without port_in, or whose handler
// fails, returns 0xFF. Failing handlers are logged and otherwise ignored.
type LuaPort struct {
	logger log.Logger

	// mu serializes access to the Lua state, which is not safe for
	// concurrent use
	mu    sync.Mutex
	state *lua.LState
}

// NewLuaPort runs script and returns the device it defines.
func NewLuaPort(script string, logger log.Logger) (*LuaPort, error) {
	d := newLuaPort(logger)
	if err := d.state.DoString(script); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "failed to run port script")
	}
	return d, nil
}

// LoadLuaPort runs the script at path and returns the device it defines.
func LoadLuaPort(path string, logger log.Logger) (*LuaPort, error) {
	d := newLuaPort(logger)
	if err := d.state.DoFile(path); err != nil {
		d.Close()
		return nil, errors.Wrapf(err, "failed to run port script %s", path)
	}
	return d, nil
}

func newLuaPort(logger log.Logger) *LuaPort {
	d := &LuaPort{
		logger: logger,
		state:  lua.NewState(),
	}
	d.state.SetGlobal("log", d.state.NewFunction(func(L *lua.LState) int {
		d.logger.Infof("lua: %s", L.CheckString(1))
		return 0
	}))
	return d
}

// Attach connects the device to length ports starting at start.
func (d *LuaPort) Attach(ports *z80.DevicePorts, start, length int) error {
	return ports.Attach(start, length, d)
}

func (d *LuaPort) In(port byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn := d.state.GetGlobal(luaInFunction)
	if fn.Type() != lua.LTFunction {
		return 0xFF
	}

	err := d.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(port))
	if err != nil {
		d.logger.Warnf("%s(%#02x) failed: %s", luaInFunction, port, err)
		return 0xFF
	}
	ret := d.state.Get(-1)
	d.state.Pop(1)

	if ret.Type() != lua.LTNumber {
		d.logger.Warnf("%s(%#02x) returned %s, want a number", luaInFunction, port, ret.Type())
		return 0xFF
	}
	return byte(int(lua.LVAsNumber(ret)))
}

func (d *LuaPort) Out(port byte, v byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn := d.state.GetGlobal(luaOutFunction)
	if fn.Type() != lua.LTFunction {
		return
	}

	err := d.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(port), lua.LNumber(v))
	if err != nil {
		d.logger.Warnf("%s(%#02x, %#02x) failed: %s", luaOutFunction, port, v, err)
	}
}

// Close releases the Lua state.
func (d *LuaPort) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Close()
}

func (d *LuaPort) String() string {
	return "LUA"
}
