package z80

// baseOps holds the unprefixed instructions.
var baseOps [256]handler

func init() {
	baseOps[0x00] = func(e *Executor) int {
		// NOP
		e.done()
		return 4
	}

	for code := byte(0); code < 4; code++ {
		pair := registerPairs[code]
		op := code << 4

		// LD rr,nn
		baseOps[op|0x01] = func(e *Executor) int {
			v := e.fetchWord()
			e.agent.FetchFinished(FetchInfo{IsLdSp: pair == RegisterSP})
			e.r.Write16(pair, v)
			return 10
		}

		// INC rr
		baseOps[op|0x03] = func(e *Executor) int {
			e.done()
			e.r.Write16(pair, e.r.Read16(pair)+1)
			return 6
		}

		// ADD HL,rr
		baseOps[op|0x09] = func(e *Executor) int {
			e.done()
			e.r.Write16(RegisterHL, e.add16(e.r.Read16(RegisterHL), e.r.Read16(pair)))
			return 11
		}

		// DEC rr
		baseOps[op|0x0B] = func(e *Executor) int {
			e.done()
			e.r.Write16(pair, e.r.Read16(pair)-1)
			return 6
		}
	}

	// LD (BC),A / LD (DE),A / LD A,(BC) / LD A,(DE)
	for _, pair := range []Register16{RegisterBC, RegisterDE} {
		pair := pair
		op := byte(0x02)
		if pair == RegisterDE {
			op = 0x12
		}
		baseOps[op] = func(e *Executor) int {
			e.done()
			e.write(e.r.Read16(pair), e.a())
			return 7
		}
		baseOps[op|0x08] = func(e *Executor) int {
			e.done()
			e.setA(e.read(e.r.Read16(pair)))
			return 7
		}
	}

	for code := byte(0); code < 8; code++ {
		code := code
		op := code << 3
		if code == 6 {
			continue
		}

		// INC r
		baseOps[op|0x04] = func(e *Executor) int {
			e.done()
			e.setReg8(code, e.inc8(e.reg8(code)))
			return 4
		}

		// DEC r
		baseOps[op|0x05] = func(e *Executor) int {
			e.done()
			e.setReg8(code, e.dec8(e.reg8(code)))
			return 4
		}

		// LD r,n
		baseOps[op|0x06] = func(e *Executor) int {
			n := e.fetch()
			e.done()
			e.setReg8(code, n)
			return 7
		}
	}

	// INC (HL)
	baseOps[0x34] = func(e *Executor) int {
		e.done()
		address := e.r.Read16(RegisterHL)
		e.write(address, e.inc8(e.read(address)))
		return 11
	}

	// DEC (HL)
	baseOps[0x35] = func(e *Executor) int {
		e.done()
		address := e.r.Read16(RegisterHL)
		e.write(address, e.dec8(e.read(address)))
		return 11
	}

	// LD (HL),n
	baseOps[0x36] = func(e *Executor) int {
		n := e.fetch()
		e.done()
		e.write(e.r.Read16(RegisterHL), n)
		return 10
	}

	// RLCA, RRCA, RLA, RRA
	for i, op := range []byte{0x07, 0x0F, 0x17, 0x1F} {
		kind := byte(i)
		baseOps[op] = func(e *Executor) int {
			e.done()
			e.rotateA(kind)
			return 4
		}
	}

	// EX AF,AF'
	baseOps[0x08] = func(e *Executor) int {
		e.done()
		e.r.Exchange(RegisterAF, RegisterAltAF)
		return 4
	}

	// DJNZ d
	baseOps[0x10] = func(e *Executor) int {
		d := int8(e.fetch())
		e.done()
		b := e.r.Read8(RegisterB) - 1
		e.r.Write8(RegisterB, b)
		if b == 0 {
			return 8
		}
		e.r.SetPC(offsetAddress(e.r.PC(), d))
		return 13
	}

	// JR d
	baseOps[0x18] = func(e *Executor) int {
		d := int8(e.fetch())
		e.done()
		e.r.SetPC(offsetAddress(e.r.PC(), d))
		return 12
	}

	// JR cc,d for NZ, Z, NC and C
	for cc := byte(0); cc < 4; cc++ {
		cc := cc
		baseOps[0x20|cc<<3] = func(e *Executor) int {
			d := int8(e.fetch())
			e.done()
			if !e.condition(cc) {
				return 7
			}
			e.r.SetPC(offsetAddress(e.r.PC(), d))
			return 12
		}
	}

	// LD (nn),HL
	baseOps[0x22] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.writeWord(address, e.r.Read16(RegisterHL))
		return 16
	}

	// LD HL,(nn)
	baseOps[0x2A] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.r.Write16(RegisterHL, e.readWord(address))
		return 16
	}

	// LD (nn),A
	baseOps[0x32] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.write(address, e.a())
		return 13
	}

	// LD A,(nn)
	baseOps[0x3A] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.setA(e.read(address))
		return 13
	}

	for op, fn := range map[byte]func(e *Executor){
		0x27: (*Executor).daa,
		0x2F: (*Executor).cpl,
		0x37: (*Executor).scf,
		0x3F: (*Executor).ccf,
	} {
		fn := fn
		baseOps[op] = func(e *Executor) int {
			e.done()
			fn(e)
			return 4
		}
	}

	// LD r,r' / LD r,(HL) / LD (HL),r
	for op := 0x40; op < 0x80; op++ {
		dst := byte(op>>3) & 0x07
		src := byte(op) & 0x07
		switch {
		case op == 0x76:
			// HALT
			baseOps[op] = func(e *Executor) int {
				e.agent.FetchFinished(FetchInfo{IsHalt: true})
				return 4
			}
		case src == 6:
			baseOps[op] = func(e *Executor) int {
				e.done()
				e.setReg8(dst, e.read(e.r.Read16(RegisterHL)))
				return 7
			}
		case dst == 6:
			baseOps[op] = func(e *Executor) int {
				e.done()
				e.write(e.r.Read16(RegisterHL), e.reg8(src))
				return 7
			}
		default:
			baseOps[op] = func(e *Executor) int {
				e.done()
				e.setReg8(dst, e.reg8(src))
				return 4
			}
		}
	}

	// ADD/ADC/SUB/SBC/AND/XOR/OR/CP A,r and A,(HL)
	for op := 0x80; op < 0xC0; op++ {
		kind := byte(op>>3) & 0x07
		src := byte(op) & 0x07
		if src == 6 {
			baseOps[op] = func(e *Executor) int {
				e.done()
				e.alu(kind, e.read(e.r.Read16(RegisterHL)))
				return 7
			}
			continue
		}
		baseOps[op] = func(e *Executor) int {
			e.done()
			e.alu(kind, e.reg8(src))
			return 4
		}
	}

	for cc := byte(0); cc < 8; cc++ {
		cc := cc
		op := 0xC0 | cc<<3

		// RET cc
		baseOps[op] = func(e *Executor) int {
			taken := e.condition(cc)
			e.agent.FetchFinished(FetchInfo{IsRet: taken})
			if !taken {
				return 5
			}
			e.r.SetPC(e.pop())
			return 11
		}

		// JP cc,nn
		baseOps[op|0x02] = func(e *Executor) int {
			address := e.fetchWord()
			e.done()
			if e.condition(cc) {
				e.r.SetPC(address)
			}
			return 10
		}

		// CALL cc,nn
		baseOps[op|0x04] = func(e *Executor) int {
			address := e.fetchWord()
			e.done()
			if !e.condition(cc) {
				return 10
			}
			e.push(e.r.PC())
			e.r.SetPC(address)
			return 17
		}

		// ALU A,n
		baseOps[op|0x06] = func(e *Executor) int {
			n := e.fetch()
			e.done()
			e.alu(cc, n)
			return 7
		}

		// RST p
		vector := uint16(cc) << 3
		baseOps[op|0x07] = func(e *Executor) int {
			e.done()
			e.push(e.r.PC())
			e.r.SetPC(vector)
			return 11
		}
	}

	for code := byte(0); code < 4; code++ {
		pair := stackPairs[code]
		op := 0xC0 | code<<4

		// POP qq
		baseOps[op|0x01] = func(e *Executor) int {
			e.done()
			e.r.Write16(pair, e.pop())
			return 10
		}

		// PUSH qq
		baseOps[op|0x05] = func(e *Executor) int {
			e.done()
			e.push(e.r.Read16(pair))
			return 11
		}
	}

	// JP nn
	baseOps[0xC3] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.r.SetPC(address)
		return 10
	}

	// RET
	baseOps[0xC9] = func(e *Executor) int {
		e.agent.FetchFinished(FetchInfo{IsRet: true})
		e.r.SetPC(e.pop())
		return 10
	}

	// CALL nn
	baseOps[0xCD] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.push(e.r.PC())
		e.r.SetPC(address)
		return 17
	}

	// OUT (n),A
	baseOps[0xD3] = func(e *Executor) int {
		port := e.fetch()
		e.done()
		e.agent.WriteToPort(port, e.a())
		return 11
	}

	// EXX
	baseOps[0xD9] = func(e *Executor) int {
		e.done()
		e.r.Exchange(RegisterBC, RegisterAltBC)
		e.r.Exchange(RegisterDE, RegisterAltDE)
		e.r.Exchange(RegisterHL, RegisterAltHL)
		return 4
	}

	// IN A,(n)
	baseOps[0xDB] = func(e *Executor) int {
		port := e.fetch()
		e.done()
		e.setA(e.agent.ReadFromPort(port))
		return 11
	}

	// EX (SP),HL
	baseOps[0xE3] = func(e *Executor) int {
		e.done()
		e.exchangeStackTop(RegisterHL)
		return 19
	}

	// JP (HL)
	baseOps[0xE9] = func(e *Executor) int {
		e.done()
		e.r.SetPC(e.r.Read16(RegisterHL))
		return 4
	}

	// EX DE,HL
	baseOps[0xEB] = func(e *Executor) int {
		e.done()
		e.r.Exchange(RegisterDE, RegisterHL)
		return 4
	}

	// DI
	baseOps[0xF3] = func(e *Executor) int {
		e.agent.FetchFinished(FetchInfo{IsEiOrDi: true})
		e.r.SetIFF1(false)
		e.r.SetIFF2(false)
		return 4
	}

	// LD SP,HL
	baseOps[0xF9] = func(e *Executor) int {
		e.agent.FetchFinished(FetchInfo{IsLdSp: true})
		e.r.SetSP(e.r.Read16(RegisterHL))
		return 6
	}

	// EI
	baseOps[0xFB] = func(e *Executor) int {
		e.agent.FetchFinished(FetchInfo{IsEiOrDi: true})
		e.r.SetIFF1(true)
		e.r.SetIFF2(true)
		return 4
	}
}

func (e *Executor) exchangeStackTop(register Register16) {
	sp := e.r.SP()
	v := e.readWord(sp)
	e.writeWord(sp, e.r.Read16(register))
	e.r.Write16(register, v)
}
