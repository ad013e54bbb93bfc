package z80

// Flag masks of F, see the Flag constants for the bit positions.
const (
	fC  byte = 0x01
	fN  byte = 0x02
	fPV byte = 0x04
	f3  byte = 0x08
	fH  byte = 0x10
	f5  byte = 0x20
	fZ  byte = 0x40
	fS  byte = 0x80
)

var (
	// sz53Table holds S, Z, 5 and 3 as they follow from a result byte
	sz53Table [256]byte

	// sz53pTable is sz53Table plus even parity in P/V
	sz53pTable [256]byte
)

func init() {
	for i := 0; i < 256; i++ {
		v := byte(i)
		sz53Table[i] = v & (fS | f5 | f3)
		if v == 0 {
			sz53Table[i] |= fZ
		}

		parity := true
		for b := v; b != 0; b >>= 1 {
			if b&1 != 0 {
				parity = !parity
			}
		}
		sz53pTable[i] = sz53Table[i]
		if parity {
			sz53pTable[i] |= fPV
		}
	}
}

func (e *Executor) a() byte {
	return e.r.Read8(RegisterA)
}

func (e *Executor) f() byte {
	return e.r.Read8(RegisterF)
}

func (e *Executor) setA(v byte) {
	e.r.Write8(RegisterA, v)
}

func (e *Executor) setF(v byte) {
	e.r.Write8(RegisterF, v)
}

func (e *Executor) carry() byte {
	return e.f() & fC
}

func (e *Executor) add8(v byte, withCarry bool) {
	a := e.a()
	var c byte
	if withCarry {
		c = e.carry()
	}
	result := uint16(a) + uint16(v) + uint16(c)
	r := byte(result)

	f := sz53Table[r]
	if result > 0xFF {
		f |= fC
	}
	if (a&0x0F)+(v&0x0F)+c > 0x0F {
		f |= fH
	}
	if (a^v)&0x80 == 0 && (a^r)&0x80 != 0 {
		f |= fPV
	}
	e.setA(r)
	e.setF(f)
}

// sub8 returns A - v (- carry) and the flags of the subtraction.
func (e *Executor) sub8(v byte, withCarry bool) (byte, byte) {
	a := e.a()
	var c byte
	if withCarry {
		c = e.carry()
	}
	result := int(a) - int(v) - int(c)
	r := byte(result)

	f := sz53Table[r] | fN
	if result < 0 {
		f |= fC
	}
	if int(a&0x0F)-int(v&0x0F)-int(c) < 0 {
		f |= fH
	}
	if (a^v)&0x80 != 0 && (a^r)&0x80 != 0 {
		f |= fPV
	}
	return r, f
}

// alu applies one of ADD, ADC, SUB, SBC, AND, XOR, OR and CP, selected by
// bits 3-5 of the opcode, to A and v.
func (e *Executor) alu(op byte, v byte) {
	switch op & 0x07 {
	case 0:
		e.add8(v, false)
	case 1:
		e.add8(v, true)
	case 2, 3:
		r, f := e.sub8(v, op&0x07 == 3)
		e.setA(r)
		e.setF(f)
	case 4:
		r := e.a() & v
		e.setA(r)
		e.setF(sz53pTable[r] | fH)
	case 5:
		r := e.a() ^ v
		e.setA(r)
		e.setF(sz53pTable[r])
	case 6:
		r := e.a() | v
		e.setA(r)
		e.setF(sz53pTable[r])
	case 7:
		// flags 3 and 5 come from the operand, not the result
		_, f := e.sub8(v, false)
		e.setF(f&^(f3|f5) | v&(f3|f5))
	}
}

func (e *Executor) inc8(v byte) byte {
	r := v + 1
	f := e.carry() | sz53Table[r]
	if v&0x0F == 0x0F {
		f |= fH
	}
	if v == 0x7F {
		f |= fPV
	}
	e.setF(f)
	return r
}

func (e *Executor) dec8(v byte) byte {
	r := v - 1
	f := e.carry() | fN | sz53Table[r]
	if v&0x0F == 0x00 {
		f |= fH
	}
	if v == 0x80 {
		f |= fPV
	}
	e.setF(f)
	return r
}

// add16 is ADD HL,rr: S, Z and P/V are preserved.
func (e *Executor) add16(a, b uint16) uint16 {
	result := uint32(a) + uint32(b)
	r := uint16(result)

	f := e.f()&(fS|fZ|fPV) | HighByte(r)&(f3|f5)
	if (a&0x0FFF)+(b&0x0FFF) > 0x0FFF {
		f |= fH
	}
	if result > 0xFFFF {
		f |= fC
	}
	e.setF(f)
	return r
}

func (e *Executor) adc16(a, b uint16) uint16 {
	c := uint32(e.carry())
	result := uint32(a) + uint32(b) + c
	r := uint16(result)

	f := HighByte(r) & (fS | f3 | f5)
	if r == 0 {
		f |= fZ
	}
	if uint32(a&0x0FFF)+uint32(b&0x0FFF)+c > 0x0FFF {
		f |= fH
	}
	if (a^b)&0x8000 == 0 && (a^r)&0x8000 != 0 {
		f |= fPV
	}
	if result > 0xFFFF {
		f |= fC
	}
	e.setF(f)
	return r
}

func (e *Executor) sbc16(a, b uint16) uint16 {
	c := int(e.carry())
	result := int(a) - int(b) - c
	r := uint16(result)

	f := HighByte(r)&(fS|f3|f5) | fN
	if r == 0 {
		f |= fZ
	}
	if int(a&0x0FFF)-int(b&0x0FFF)-c < 0 {
		f |= fH
	}
	if (a^b)&0x8000 != 0 && (a^r)&0x8000 != 0 {
		f |= fPV
	}
	if result < 0 {
		f |= fC
	}
	e.setF(f)
	return r
}

// rotateA implements RLCA, RRCA, RLA and RRA, which only touch H, N, C and
// flags 3/5.
func (e *Executor) rotateA(op byte) {
	a := e.a()
	var r, c byte
	switch op {
	case 0: // RLCA
		c = a >> 7
		r = a<<1 | c
	case 1: // RRCA
		c = a & 0x01
		r = a>>1 | c<<7
	case 2: // RLA
		c = a >> 7
		r = a<<1 | e.carry()
	case 3: // RRA
		c = a & 0x01
		r = a>>1 | e.carry()<<7
	}
	e.setA(r)
	e.setF(e.f()&(fS|fZ|fPV) | r&(f3|f5) | c)
}

// shift implements the CB rotate and shift group, selected by bits 3-5 of
// the opcode: RLC, RRC, RL, RR, SLA, SRA, SLL and SRL.
func (e *Executor) shift(op byte, v byte) byte {
	var r, c byte
	switch op & 0x07 {
	case 0:
		c = v >> 7
		r = v<<1 | c
	case 1:
		c = v & 0x01
		r = v>>1 | c<<7
	case 2:
		c = v >> 7
		r = v<<1 | e.carry()
	case 3:
		c = v & 0x01
		r = v>>1 | e.carry()<<7
	case 4:
		c = v >> 7
		r = v << 1
	case 5:
		c = v & 0x01
		r = v>>1 | v&0x80
	case 6:
		c = v >> 7
		r = v<<1 | 0x01
	case 7:
		c = v & 0x01
		r = v >> 1
	}
	e.setF(sz53pTable[r] | c)
	return r
}

// bit tests bit n of v. Flags 3 and 5 are taken from undocumented, which
// is v for registers and the high byte of the address for memory operands.
func (e *Executor) bit(n byte, v byte, undocumented byte) {
	f := e.carry() | fH | undocumented&(f3|f5)
	if v&(1<<n) == 0 {
		f |= fZ | fPV
	} else if n == 7 {
		f |= fS
	}
	e.setF(f)
}

func (e *Executor) daa() {
	a := e.a()
	f := e.f()

	var adjust byte
	carry := f & fC
	if f&fH != 0 || a&0x0F > 0x09 {
		adjust |= 0x06
	}
	if carry != 0 || a > 0x99 {
		adjust |= 0x60
		carry = fC
	}

	var r byte
	if f&fN != 0 {
		r = a - adjust
	} else {
		r = a + adjust
	}
	e.setA(r)
	e.setF(sz53pTable[r] | f&fN | (a^r)&fH | carry)
}

func (e *Executor) cpl() {
	r := ^e.a()
	e.setA(r)
	e.setF(e.f()&(fS|fZ|fPV|fC) | fH | fN | r&(f3|f5))
}

func (e *Executor) neg() {
	a := e.a()
	e.setA(0)
	r, f := e.sub8(a, false)
	e.setA(r)
	e.setF(f)
}

func (e *Executor) scf() {
	e.setF(e.f()&(fS|fZ|fPV) | e.a()&(f3|f5) | fC)
}

func (e *Executor) ccf() {
	f := e.f()
	r := f&(fS|fZ|fPV) | e.a()&(f3|f5)
	if f&fC != 0 {
		r |= fH
	} else {
		r |= fC
	}
	e.setF(r)
}
