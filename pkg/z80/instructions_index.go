package z80

// indexOps holds the instructions DD and FD change to use IX or IY, indexed
// by the byte following the prefix. A nil entry means the prefix has no
// effect and the unprefixed instruction executes with 4 extra T-states.
// These prefixed T-states include the prefix.
var indexOps [256]handler

func init() {
	for code := byte(0); code < 4; code++ {
		code := code
		op := code << 4

		// ADD IX,rr
		indexOps[op|0x09] = func(e *Executor) int {
			e.done()
			e.r.Write16(e.index, e.add16(e.r.Read16(e.index), e.r.Read16(e.indexPair(code))))
			return 15
		}
	}

	// LD IX,nn
	indexOps[0x21] = func(e *Executor) int {
		v := e.fetchWord()
		e.done()
		e.r.Write16(e.index, v)
		return 14
	}

	// LD (nn),IX
	indexOps[0x22] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.writeWord(address, e.r.Read16(e.index))
		return 20
	}

	// LD IX,(nn)
	indexOps[0x2A] = func(e *Executor) int {
		address := e.fetchWord()
		e.done()
		e.r.Write16(e.index, e.readWord(address))
		return 20
	}

	// INC IX
	indexOps[0x23] = func(e *Executor) int {
		e.done()
		e.r.Write16(e.index, e.r.Read16(e.index)+1)
		return 10
	}

	// DEC IX
	indexOps[0x2B] = func(e *Executor) int {
		e.done()
		e.r.Write16(e.index, e.r.Read16(e.index)-1)
		return 10
	}

	for _, code := range []byte{4, 5} {
		code := code
		op := code << 3

		// INC IXH / INC IXL
		indexOps[op|0x04] = func(e *Executor) int {
			e.done()
			register := e.indexReg8(code)
			e.r.Write8(register, e.inc8(e.r.Read8(register)))
			return 8
		}

		// DEC IXH / DEC IXL
		indexOps[op|0x05] = func(e *Executor) int {
			e.done()
			register := e.indexReg8(code)
			e.r.Write8(register, e.dec8(e.r.Read8(register)))
			return 8
		}

		// LD IXH,n / LD IXL,n
		indexOps[op|0x06] = func(e *Executor) int {
			n := e.fetch()
			e.done()
			e.r.Write8(e.indexReg8(code), n)
			return 11
		}
	}

	// INC (IX+d)
	indexOps[0x34] = func(e *Executor) int {
		address := e.indexAddress()
		e.done()
		e.write(address, e.inc8(e.read(address)))
		return 23
	}

	// DEC (IX+d)
	indexOps[0x35] = func(e *Executor) int {
		address := e.indexAddress()
		e.done()
		e.write(address, e.dec8(e.read(address)))
		return 23
	}

	// LD (IX+d),n
	indexOps[0x36] = func(e *Executor) int {
		address := e.indexAddress()
		n := e.fetch()
		e.done()
		e.write(address, n)
		return 19
	}

	for op := 0x40; op < 0x80; op++ {
		dst := byte(op>>3) & 0x07
		src := byte(op) & 0x07
		switch {
		case op == 0x76:
			// HALT is not affected
		case src == 6:
			// LD r,(IX+d) loads the real H and L
			indexOps[op] = func(e *Executor) int {
				address := e.indexAddress()
				e.done()
				e.setReg8(dst, e.read(address))
				return 19
			}
		case dst == 6:
			// LD (IX+d),r stores the real H and L
			indexOps[op] = func(e *Executor) int {
				address := e.indexAddress()
				e.done()
				e.write(address, e.reg8(src))
				return 19
			}
		case dst == 4 || dst == 5 || src == 4 || src == 5:
			// LD involving IXH or IXL
			indexOps[op] = func(e *Executor) int {
				e.done()
				e.r.Write8(e.indexReg8(dst), e.r.Read8(e.indexReg8(src)))
				return 8
			}
		}
	}

	for op := 0x80; op < 0xC0; op++ {
		kind := byte(op>>3) & 0x07
		src := byte(op) & 0x07
		switch src {
		case 4, 5:
			// ALU A,IXH / ALU A,IXL
			indexOps[op] = func(e *Executor) int {
				e.done()
				e.alu(kind, e.r.Read8(e.indexReg8(src)))
				return 8
			}
		case 6:
			// ALU A,(IX+d)
			indexOps[op] = func(e *Executor) int {
				address := e.indexAddress()
				e.done()
				e.alu(kind, e.read(address))
				return 19
			}
		}
	}

	// POP IX
	indexOps[0xE1] = func(e *Executor) int {
		e.done()
		e.r.Write16(e.index, e.pop())
		return 14
	}

	// EX (SP),IX
	indexOps[0xE3] = func(e *Executor) int {
		e.done()
		e.exchangeStackTop(e.index)
		return 23
	}

	// PUSH IX
	indexOps[0xE5] = func(e *Executor) int {
		e.done()
		e.push(e.r.Read16(e.index))
		return 15
	}

	// JP (IX)
	indexOps[0xE9] = func(e *Executor) int {
		e.done()
		e.r.SetPC(e.r.Read16(e.index))
		return 8
	}

	// LD SP,IX
	indexOps[0xF9] = func(e *Executor) int {
		e.agent.FetchFinished(FetchInfo{IsLdSp: true})
		e.r.SetSP(e.r.Read16(e.index))
		return 10
	}
}

// indexAddress fetches the displacement d and returns IX+d (or IY+d).
func (e *Executor) indexAddress() uint16 {
	d := int8(e.fetch())
	return offsetAddress(e.r.Read16(e.index), d)
}
