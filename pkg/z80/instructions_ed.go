package z80

var (
	// edOps holds ED 40-7F, indexed by the second byte minus 0x40.
	edOps [0x40]handler

	// edBlockOps holds the block instructions ED A0-BF, indexed by the
	// second byte minus 0xA0. Holes are nil.
	edBlockOps [0x20]handler
)

func init() {
	for code := byte(0); code < 8; code++ {
		code := code
		op := code << 3

		// IN r,(C); code 6 only sets the flags
		edOps[op|0x00] = func(e *Executor) int {
			e.done()
			v := e.agent.ReadFromPort(e.r.Read8(RegisterC))
			if code != 6 {
				e.setReg8(code, v)
			}
			e.setF(e.carry() | sz53pTable[v])
			return 12
		}

		// OUT (C),r; code 6 outputs zero
		edOps[op|0x01] = func(e *Executor) int {
			e.done()
			var v byte
			if code != 6 {
				v = e.reg8(code)
			}
			e.agent.WriteToPort(e.r.Read8(RegisterC), v)
			return 12
		}

		// NEG and its mirrors
		edOps[op|0x04] = func(e *Executor) int {
			e.done()
			e.neg()
			return 8
		}

		// RETN, RETI and mirrors
		edOps[op|0x05] = func(e *Executor) int {
			e.agent.FetchFinished(FetchInfo{IsRet: true})
			e.r.SetIFF1(e.r.IFF2())
			e.r.SetPC(e.pop())
			return 14
		}

		// IM 0, IM 1, IM 2; 0x4E and 0x6E select mode 0
		mode := []int{0, 0, 1, 2, 0, 0, 1, 2}[code]
		edOps[op|0x06] = func(e *Executor) int {
			e.done()
			e.agent.SetInterruptMode(mode)
			return 8
		}
	}

	for code := byte(0); code < 4; code++ {
		pair := registerPairs[code]
		op := code << 4

		// SBC HL,rr
		edOps[op|0x02] = func(e *Executor) int {
			e.done()
			e.r.Write16(RegisterHL, e.sbc16(e.r.Read16(RegisterHL), e.r.Read16(pair)))
			return 15
		}

		// LD (nn),rr
		edOps[op|0x03] = func(e *Executor) int {
			address := e.fetchWord()
			e.done()
			e.writeWord(address, e.r.Read16(pair))
			return 20
		}

		// ADC HL,rr
		edOps[op|0x0A] = func(e *Executor) int {
			e.done()
			e.r.Write16(RegisterHL, e.adc16(e.r.Read16(RegisterHL), e.r.Read16(pair)))
			return 15
		}

		// LD rr,(nn)
		edOps[op|0x0B] = func(e *Executor) int {
			address := e.fetchWord()
			e.agent.FetchFinished(FetchInfo{IsLdSp: pair == RegisterSP})
			e.r.Write16(pair, e.readWord(address))
			return 20
		}
	}

	// LD I,A
	edOps[0x07] = func(e *Executor) int {
		e.done()
		e.r.Write8(RegisterI, e.a())
		return 9
	}

	// LD R,A
	edOps[0x0F] = func(e *Executor) int {
		e.done()
		e.r.Write8(RegisterR, e.a())
		return 9
	}

	// LD A,I
	edOps[0x17] = func(e *Executor) int {
		e.done()
		e.loadAFromInterruptRegister(RegisterI)
		return 9
	}

	// LD A,R
	edOps[0x1F] = func(e *Executor) int {
		e.done()
		e.loadAFromInterruptRegister(RegisterR)
		return 9
	}

	// RRD
	edOps[0x27] = func(e *Executor) int {
		e.done()
		address := e.r.Read16(RegisterHL)
		v := e.read(address)
		a := e.a()
		e.write(address, a<<4|v>>4)
		e.setA(a&0xF0 | v&0x0F)
		e.setF(e.carry() | sz53pTable[e.a()])
		return 18
	}

	// RLD
	edOps[0x2F] = func(e *Executor) int {
		e.done()
		address := e.r.Read16(RegisterHL)
		v := e.read(address)
		a := e.a()
		e.write(address, v<<4|a&0x0F)
		e.setA(a&0xF0 | v>>4)
		e.setF(e.carry() | sz53pTable[e.a()])
		return 18
	}

	// LDI, LDD, LDIR, LDDR
	for _, op := range []byte{0xA0, 0xA8, 0xB0, 0xB8} {
		step := blockStep(op)
		repeat := op >= 0xB0
		edBlockOps[op-0xA0] = func(e *Executor) int {
			e.done()
			e.blockLoad(step)
			if repeat && e.r.Read16(RegisterBC) != 0 {
				e.r.SetPC(e.r.PC() - 2)
				return 21
			}
			return 16
		}
	}

	// CPI, CPD, CPIR, CPDR
	for _, op := range []byte{0xA1, 0xA9, 0xB1, 0xB9} {
		step := blockStep(op)
		repeat := op >= 0xB0
		edBlockOps[op-0xA0] = func(e *Executor) int {
			e.done()
			e.blockCompare(step)
			if repeat && e.r.Read16(RegisterBC) != 0 && e.f()&fZ == 0 {
				e.r.SetPC(e.r.PC() - 2)
				return 21
			}
			return 16
		}
	}

	// INI, IND, INIR, INDR
	for _, op := range []byte{0xA2, 0xAA, 0xB2, 0xBA} {
		step := blockStep(op)
		repeat := op >= 0xB0
		edBlockOps[op-0xA0] = func(e *Executor) int {
			e.done()
			e.blockIn(step)
			if repeat && e.r.Read8(RegisterB) != 0 {
				e.r.SetPC(e.r.PC() - 2)
				return 21
			}
			return 16
		}
	}

	// OUTI, OUTD, OTIR, OTDR
	for _, op := range []byte{0xA3, 0xAB, 0xB3, 0xBB} {
		step := blockStep(op)
		repeat := op >= 0xB0
		edBlockOps[op-0xA0] = func(e *Executor) int {
			e.done()
			e.blockOut(step)
			if repeat && e.r.Read8(RegisterB) != 0 {
				e.r.SetPC(e.r.PC() - 2)
				return 21
			}
			return 16
		}
	}
}

// blockStep is +1 for the incrementing block instructions, -1 for the
// decrementing ones (bit 3 set).
func blockStep(op byte) uint16 {
	if op&0x08 != 0 {
		return 0xFFFF
	}
	return 1
}

func (e *Executor) loadAFromInterruptRegister(register Register8) {
	v := e.r.Read8(register)
	e.setA(v)
	f := e.carry() | sz53Table[v]
	if e.r.IFF2() {
		f |= fPV
	}
	e.setF(f)
}

func (e *Executor) blockLoad(step uint16) {
	hl := e.r.Read16(RegisterHL)
	de := e.r.Read16(RegisterDE)
	bc := e.r.Read16(RegisterBC) - 1

	v := e.read(hl)
	e.write(de, v)
	e.r.Write16(RegisterHL, hl+step)
	e.r.Write16(RegisterDE, de+step)
	e.r.Write16(RegisterBC, bc)

	n := v + e.a()
	f := e.f()&(fS|fZ|fC) | n&f3 | (n<<4)&f5
	if bc != 0 {
		f |= fPV
	}
	e.setF(f)
}

func (e *Executor) blockCompare(step uint16) {
	hl := e.r.Read16(RegisterHL)
	bc := e.r.Read16(RegisterBC) - 1

	v := e.read(hl)
	a := e.a()
	r := a - v
	e.r.Write16(RegisterHL, hl+step)
	e.r.Write16(RegisterBC, bc)

	f := e.carry() | fN | sz53Table[r]&(fS|fZ)
	if a&0x0F < v&0x0F {
		f |= fH
		r--
	}
	f |= r&f3 | (r<<4)&f5
	if bc != 0 {
		f |= fPV
	}
	e.setF(f)
}

func (e *Executor) blockIn(step uint16) {
	hl := e.r.Read16(RegisterHL)
	v := e.agent.ReadFromPort(e.r.Read8(RegisterC))
	e.write(hl, v)
	e.r.Write16(RegisterHL, hl+step)

	b := e.r.Read8(RegisterB) - 1
	e.r.Write8(RegisterB, b)
	e.setF(e.carry() | fN | sz53Table[b])
}

func (e *Executor) blockOut(step uint16) {
	hl := e.r.Read16(RegisterHL)
	v := e.read(hl)

	// B is decremented before it is put on the address bus
	b := e.r.Read8(RegisterB) - 1
	e.r.Write8(RegisterB, b)
	e.agent.WriteToPort(e.r.Read8(RegisterC), v)
	e.r.Write16(RegisterHL, hl+step)
	e.setF(e.carry() | fN | sz53Table[b])
}
