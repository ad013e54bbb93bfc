package z80

// cbOps holds the instructions prefixed by 0xCB, indexed by the second byte.
var cbOps [256]handler

func init() {
	for op := 0; op < 256; op++ {
		group := byte(op >> 6)
		n := byte(op>>3) & 0x07
		code := byte(op) & 0x07

		if code == 6 {
			cbOps[op] = cbMemory(group, n)
			continue
		}

		switch group {
		case 0:
			// RLC, RRC, RL, RR, SLA, SRA, SLL, SRL r
			cbOps[op] = func(e *Executor) int {
				e.done()
				e.setReg8(code, e.shift(n, e.reg8(code)))
				return 8
			}
		case 1:
			// BIT n,r
			cbOps[op] = func(e *Executor) int {
				e.done()
				v := e.reg8(code)
				e.bit(n, v, v)
				return 8
			}
		case 2:
			// RES n,r
			cbOps[op] = func(e *Executor) int {
				e.done()
				e.setReg8(code, writeBitN(e.reg8(code), n, false))
				return 8
			}
		case 3:
			// SET n,r
			cbOps[op] = func(e *Executor) int {
				e.done()
				e.setReg8(code, writeBitN(e.reg8(code), n, true))
				return 8
			}
		}
	}
}

// cbMemory builds the (HL) forms of the CB group.
func cbMemory(group, n byte) handler {
	if group == 1 {
		// BIT n,(HL)
		return func(e *Executor) int {
			e.done()
			address := e.r.Read16(RegisterHL)
			e.bit(n, e.read(address), HighByte(address))
			return 12
		}
	}

	return func(e *Executor) int {
		e.done()
		address := e.r.Read16(RegisterHL)
		e.write(address, e.applyCB(group, n, e.read(address)))
		return 15
	}
}

// applyCB computes the rotate/shift, RES and SET groups.
func (e *Executor) applyCB(group, n, v byte) byte {
	switch group {
	case 0:
		return e.shift(n, v)
	case 2:
		return writeBitN(v, n, false)
	default:
		return writeBitN(v, n, true)
	}
}

// executeIndexedCB runs a DD CB d op or FD CB d op instruction on the byte
// at address. Except for BIT, a register field other than 6 also receives
// the result.
func (e *Executor) executeIndexedCB(op byte, address uint16) int {
	group := op >> 6
	n := (op >> 3) & 0x07
	code := op & 0x07

	v := e.read(address)
	if group == 1 {
		e.bit(n, v, HighByte(address))
		return 20
	}

	r := e.applyCB(group, n, v)
	e.write(address, r)
	if code != 6 {
		e.setReg8(code, r)
	}
	return 23
}
